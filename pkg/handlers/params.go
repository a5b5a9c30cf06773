package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ParseTenantID extracts the tenant ID from the request path.
// Returns the ID and true on success, or "" and false on error
// (after writing an error response).
// Expects path parameter: tid
func ParseTenantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	tenantID := strings.TrimSpace(r.PathValue("tid"))
	if tenantID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_tenant_id", "Tenant ID is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return tenantID, true
}
