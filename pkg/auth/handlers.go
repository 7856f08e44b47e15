package auth

import (
	"encoding/json"
	"net/http"

	"github.com/antibyte/retrobasic/pkg/logger"
)

// SessionStore is what the handlers need from the session manager.
type SessionStore interface {
	CreateSession(owner string) (string, error)
	RemoveSession(sessionID string) bool
}

// SessionRequest definiert die Struktur für Session-Anfragen
type SessionRequest struct {
	Password string `json:"password,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// SessionResponse definiert die Struktur für Session-Antworten
type SessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")
}

// HandleCreateSession creates an interpreter session and returns its token.
func HandleCreateSession(store SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, "POST, OPTIONS")

		// Handle OPTIONS (Preflight) request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			logger.AuthWarn("Invalid method for session creation: %s", r.Method)
			respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Ein leerer Body ist erlaubt
		var req SessionRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				logger.AuthWarn("Invalid JSON in session request: %v", err)
				respondWithError(w, "Invalid request format", http.StatusBadRequest)
				return
			}
		}

		clientIP := getClientIP(r)
		if err := CheckAccessPassword(req.Password); err != nil {
			logger.AuthWarn("Rejected session request from %s: %v", clientIP, err)
			respondWithError(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		sessionID, err := store.CreateSession(req.Owner)
		if err != nil {
			logger.AuthError("Session creation failed for %s: %v", clientIP, err)
			respondWithError(w, "Session limit reached", http.StatusServiceUnavailable)
			return
		}

		token, err := GenerateSessionToken(sessionID, req.Owner)
		if err != nil {
			logger.AuthError("Failed to generate JWT token for session %s: %v", sessionID, err)
			store.RemoveSession(sessionID)
			respondWithError(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(getTokenExpiration().Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		logger.AuthInfo("New session created: %s for IP: %s", sessionID, clientIP)
		json.NewEncoder(w).Encode(SessionResponse{
			Success:   true,
			SessionID: sessionID,
			Token:     token,
			Message:   "Session created successfully",
		})
	}
}

// HandleLogout beendet die Session des Tokens und löscht das Cookie.
// It expects to run behind RequireSessionToken.
func HandleLogout(store SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, "POST, OPTIONS")

		sessionID, ok := GetSessionIDFromContext(r.Context())
		if !ok {
			respondWithError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		store.RemoveSession(sessionID)

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1, // Sofort löschen
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		logger.AuthInfo("Session %s logged out", sessionID)
		json.NewEncoder(w).Encode(SessionResponse{Success: true, SessionID: sessionID, Message: "Logout successful"})
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for load balancers/proxies)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// respondWithError sendet eine Fehlerantwort als JSON
func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SessionResponse{
		Success: false,
		Message: message,
	})
}
