package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"canalpro-publisher/utils"
)

var (
	// ErrInvalidCEP is returned for input that is not eight digits.
	ErrInvalidCEP = errors.New("cep must have 8 digits")
	// ErrCEPNotFound is returned when the lookup service does not know the code.
	ErrCEPNotFound = errors.New("cep not found")
)

// Address is the postal data returned for a CEP.
type Address struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Cidade     string `json:"localidade"`
	Estado     string `json:"uf"`
}

// CEPClient queries a ViaCEP-compatible service.
type CEPClient struct {
	baseURL string
	client  *http.Client
	retry   *utils.RetryConfig
}

// NewCEPClient creates a client for baseURL that retries transport errors
// and 5xx responses up to maxRetries times.
func NewCEPClient(baseURL string, maxRetries int, logger *utils.Logger) *CEPClient {
	return &CEPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
		},
	}
}

// NormalizeCEP strips punctuation and returns the eight digits.
func NormalizeCEP(cep string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		if r == '-' || r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return 'x'
	}, cep)
	if len(digits) != 8 || strings.ContainsRune(digits, 'x') {
		return "", fmt.Errorf("%w: %q", ErrInvalidCEP, cep)
	}
	return digits, nil
}

// Lookup resolves cep to an address. Transport failures are retried; an
// unknown code is not.
func (c *CEPClient) Lookup(ctx context.Context, cep string) (*Address, error) {
	digits, err := NormalizeCEP(cep)
	if err != nil {
		return nil, err
	}

	var addr *Address
	notFound := false
	err = c.retry.Do(ctx, "cep lookup "+digits, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", c.baseURL, digits), nil)
		if err != nil {
			return err
		}
		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		if res.StatusCode != http.StatusOK {
			err := fmt.Errorf("status code error: %d", res.StatusCode)
			if res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
				return utils.Permanent(err)
			}
			return err
		}

		var body struct {
			Address
			Erro any `json:"erro"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if isTruthy(body.Erro) {
			notFound = true
			return nil
		}
		addr = &body.Address
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, fmt.Errorf("%w: %s", ErrCEPNotFound, digits)
	}
	return addr, nil
}

// isTruthy accepts both the boolean and the string form of the erro flag.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
