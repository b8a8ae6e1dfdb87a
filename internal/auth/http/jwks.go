package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
// Symmetric keys are never published; in HS256 mode the endpoint is a 404.
func JWKSHandler(keys *jwtx.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !keys.PublishesKeys() {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(authsdk.JWKSResponse(keys.KeySet.PublicJWKS()))
	}
}
