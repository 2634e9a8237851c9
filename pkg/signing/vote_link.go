package signing

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const voteLinkAudience = "vote-link"

var (
	// ErrInvalidToken covers malformed, tampered and wrongly scoped tokens.
	ErrInvalidToken = errors.New("invalid vote link token")
	// ErrTokenExpired is returned once the embedded expiry has passed.
	ErrTokenExpired = errors.New("vote link token expired")
)

// VoteClaim is the decision a one-tap link casts on behalf of one voter.
type VoteClaim struct {
	RequestID string
	VoterID   string
	Approve   bool
	ExpiresAt time.Time
}

type voteLinkClaims struct {
	RequestID string `json:"rid"`
	Approve   bool   `json:"approve"`
	jwt.RegisteredClaims
}

// VoteLinkSigner creates and validates signed vote links.
type VoteLinkSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewVoteLinkSigner constructs a signer; baseURL is the public prefix links are built on.
func NewVoteLinkSigner(secret, baseURL string) *VoteLinkSigner {
	return &VoteLinkSigner{secret: []byte(secret), baseURL: baseURL, now: time.Now}
}

// Generate returns a token binding the claim. The token carries its own expiry.
func (s *VoteLinkSigner) Generate(claim VoteClaim) (string, error) {
	if claim.RequestID == "" || claim.VoterID == "" {
		return "", fmt.Errorf("request id and voter id required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	if claim.ExpiresAt.IsZero() {
		return "", fmt.Errorf("expiry required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, voteLinkClaims{
		RequestID: claim.RequestID,
		Approve:   claim.Approve,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claim.VoterID,
			Audience:  jwt.ClaimStrings{voteLinkAudience},
			ExpiresAt: jwt.NewNumericDate(claim.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign vote link: %w", err)
	}
	return signed, nil
}

// URL returns the absolute link for a claim.
func (s *VoteLinkSigner) URL(claim VoteClaim) (string, error) {
	token, err := s.Generate(claim)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + url.PathEscape(token), nil
}

// Links returns the approve and reject links for one voter.
func (s *VoteLinkSigner) Links(requestID, voterID string, expiresAt time.Time) (approve, reject string, err error) {
	approve, err = s.URL(VoteClaim{RequestID: requestID, VoterID: voterID, Approve: true, ExpiresAt: expiresAt})
	if err != nil {
		return "", "", err
	}
	reject, err = s.URL(VoteClaim{RequestID: requestID, VoterID: voterID, Approve: false, ExpiresAt: expiresAt})
	if err != nil {
		return "", "", err
	}
	return approve, reject, nil
}

// Parse validates a token and returns the embedded claim.
func (s *VoteLinkSigner) Parse(token string) (VoteClaim, error) {
	claims := &voteLinkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(voteLinkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return VoteClaim{}, ErrTokenExpired
		}
		return VoteClaim{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.RequestID == "" || claims.Subject == "" {
		return VoteClaim{}, ErrInvalidToken
	}
	return VoteClaim{
		RequestID: claims.RequestID,
		VoterID:   claims.Subject,
		Approve:   claims.Approve,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
