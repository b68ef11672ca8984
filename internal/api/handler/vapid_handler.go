package handler

import "net/http"

// VAPIDHandler publishes the application server key browsers need to subscribe.
type VAPIDHandler struct {
	publicKey string
}

func NewVAPIDHandler(publicKey string) *VAPIDHandler {
	return &VAPIDHandler{publicKey: publicKey}
}

// PublicKey handles GET /api/v1/vapid/public-key
//
// @Summary  VAPID application server key
// @Tags     push
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /api/v1/vapid/public-key [get]
func (h *VAPIDHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}
