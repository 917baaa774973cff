package server

import (
	"net/http"
	"time"
)

const tokenCookieName = "igt_token"

// authMiddleware checks for valid token in query param or cookie
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check query param first
		if queryToken := r.URL.Query().Get("token"); queryToken != "" {
			if queryToken != s.token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			// Valid token in query param - set cookie and redirect without param
			http.SetCookie(w, &http.Cookie{
				Name:     tokenCookieName,
				Value:    s.token,
				Path:     "/dashboard",
				HttpOnly: true,
				MaxAge:   int(24 * time.Hour / time.Second),
				SameSite: http.SameSiteLaxMode,
			})

			newURL := *r.URL
			q := newURL.Query()
			q.Del("token")
			newURL.RawQuery = q.Encode()
			http.Redirect(w, r, newURL.String(), http.StatusFound)
			return
		}

		cookie, err := r.Cookie(tokenCookieName)
		if err != nil || cookie.Value != s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
