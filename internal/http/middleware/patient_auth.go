package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeevancare/appointment-platform/internal/identity"
)

// PatientClaims are the claims carried by a patient session token. Subject
// holds the patient id.
type PatientClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// PatientJWT validates HS256 bearer tokens and attaches the caller's
// identity to the request context.
func PatientJWT(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		// Reject everything rather than run an open API on a misconfigured box.
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"patient auth not configured"}`, http.StatusUnauthorized)
			})
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := &PatientClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				http.Error(w, `{"error":"token missing subject"}`, http.StatusUnauthorized)
				return
			}

			role := claims.Role
			if role == "" {
				role = "patient"
			}
			ctx := identity.WithPrincipal(r.Context(), identity.Principal{
				UserID: claims.Subject,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssuePatientToken mints a signed session token for a patient. Used by the
// seed tooling and tests; the production login flow lives outside this
// service.
func IssuePatientToken(secret, patientID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("middleware: token secret required")
	}
	now := time.Now()
	claims := PatientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   patientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
