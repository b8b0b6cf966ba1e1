package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iacai-network/access-layer/internal/app/domain/tier"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// VerifiedUser is the backend verifier's view of an authenticated wallet.
type VerifiedUser struct {
	Wallet            string    `json:"wallet"`
	Tier              tier.Tier `json:"tier"`
	AllowedOperations []string  `json:"allowed_operations,omitempty"`
}

// Verifier validates auth-provider tokens. With an endpoint configured it
// delegates to the backend verification service; otherwise it validates
// the token locally as an HS256 JWT. Verification failures are expected,
// recoverable errors: callers must not treat them as fatal, and the mock
// execution path never calls the verifier at all.
type Verifier struct {
	endpoint   string
	secret     []byte
	httpClient *http.Client
	log        *logger.Logger
}

// NewVerifier builds a verifier. Either endpoint or secret may be empty,
// but not both if verification is ever invoked.
func NewVerifier(endpoint, secret string, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewDefault("auth-verifier")
	}
	return &Verifier{
		endpoint:   endpoint,
		secret:     []byte(secret),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Verify resolves a token into the wallet it belongs to.
func (v *Verifier) Verify(ctx context.Context, token string) (*VerifiedUser, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if v.endpoint != "" {
		return v.verifyRemote(ctx, token)
	}
	if len(v.secret) > 0 {
		return v.verifyLocal(token)
	}
	return nil, fmt.Errorf("verifier not configured")
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*VerifiedUser, error) {
	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verifier rejected token: status %d", resp.StatusCode)
	}

	var user VerifiedUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode verifier response: %w", err)
	}
	if user.Wallet == "" {
		return nil, fmt.Errorf("verifier response missing wallet")
	}
	user.Tier = tier.Parse(string(user.Tier))
	return &user, nil
}

func (v *Verifier) verifyLocal(token string) (*VerifiedUser, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	wallet, _ := claims["wallet"].(string)
	if wallet == "" {
		return nil, fmt.Errorf("token missing wallet claim")
	}
	rawTier, _ := claims["tier"].(string)

	user := &VerifiedUser{Wallet: wallet, Tier: tier.Parse(rawTier)}
	if ops, ok := claims["allowed_operations"].([]any); ok {
		for _, op := range ops {
			if s, ok := op.(string); ok {
				user.AllowedOperations = append(user.AllowedOperations, s)
			}
		}
	}
	return user, nil
}
