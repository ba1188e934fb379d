package takarakuji

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/japanese"
)

// MizuhoSource fetches draw files from the Mizuho Bank website. Responses
// are decoded from Shift_JIS to UTF-8 before being handed to the parser.
// Transient failures are retried with backoff and a circuit breaker keeps
// a struggling provider from being hammered.
type MizuhoSource struct {
	client   *resty.Client
	breaker  *ProviderBreaker
	recovery *ErrorRecovery
	logger   Logger
}

var _ DrawSource = (*MizuhoSource)(nil)

// NewMizuhoSource creates a provider client. A nil config uses defaults,
// a nil breaker runs without one.
func NewMizuhoSource(config *FetchConfig, breaker *ProviderBreaker, logger Logger) *MizuhoSource {
	if config == nil {
		config = DefaultFetchConfig()
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}
	if breaker == nil {
		breaker = NewProviderBreaker(&CircuitBreakerConfig{Enabled: false}, logger)
	}

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent)

	handler := NewErrorHandlerWithBackoff(logger, config.RetryInterval, 30*config.RetryInterval)

	return &MizuhoSource{
		client:   client,
		breaker:  breaker,
		recovery: NewErrorRecovery(handler, config.RetryAttempts, logger),
		logger:   logger,
	}
}

// FetchIndex retrieves the name.txt index listing a selection game's
// published result files, newest first.
func (s *MizuhoSource) FetchIndex(ctx context.Context, game Game) ([]byte, string, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, "", err
	}
	if spec.Kind != KindSelection {
		return nil, "", ErrInvalidGame.WithDetailsf("game %q publishes no index file", game)
	}

	return s.fetch(ctx, fmt.Sprintf("/takarakuji/apl/txt/%s/name.txt", game))
}

// FetchSelectionCSV retrieves the result CSV for one selection draw.
func (s *MizuhoSource) FetchSelectionCSV(ctx context.Context, game Game, period int) ([]byte, string, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, "", err
	}
	if spec.Kind != KindSelection {
		return nil, "", ErrInvalidGame.WithDetailsf("game %q has no per-period result files", game)
	}
	if period < 1 {
		return nil, "", ErrInvalidPeriod.WithDetailsf("period %d", period)
	}

	filename := fmt.Sprintf("A10%s%04d.CSV", spec.FilePrefix, period)
	return s.fetch(ctx, fmt.Sprintf("/retail/takarakuji/loto/%s/csv/%s", game, filename))
}

// FetchTraditionalCSV retrieves the combined CSV carrying the recent
// draws of a traditional game.
func (s *MizuhoSource) FetchTraditionalCSV(ctx context.Context, game Game) ([]byte, string, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, "", err
	}
	if spec.Kind != KindTraditional {
		return nil, "", ErrInvalidGame.WithDetailsf("game %q has no combined result file", game)
	}

	return s.fetch(ctx, fmt.Sprintf("/retail/takarakuji/tsujyo/%s/csv/%s.csv", game, game))
}

// fetch downloads one provider file and decodes it to UTF-8.
func (s *MizuhoSource) fetch(ctx context.Context, path string) ([]byte, string, error) {
	sourceURL := s.client.BaseURL + path

	var body []byte
	err := s.recovery.ExecuteWithRetry(ctx, func() error {
		result, err := s.breaker.Execute(func() (any, error) {
			return s.doRequest(ctx, path, sourceURL)
		})
		if err != nil {
			var lerr *LotteryError
			if !errors.As(err, &lerr) {
				err = ErrFetchFailed.WithDetailsf("GET %s", sourceURL).WithSourceURL(sourceURL).WithCause(err)
			}
			return err
		}

		resp := result.(*resty.Response)
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return ErrDrawNotFound.WithDetailsf("provider has no file at %s", sourceURL).WithSourceURL(sourceURL)
		case resp.StatusCode() >= 400:
			return ErrFetchRejected.WithDetailsf("provider returned HTTP %d", resp.StatusCode()).WithSourceURL(sourceURL)
		}

		if len(resp.Body()) == 0 {
			return ErrEmptyPayload.WithSourceURL(sourceURL)
		}

		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, sourceURL, err
	}

	decoded, err := decodeProviderText(body)
	if err != nil {
		return nil, sourceURL, ErrParseFailed.
			WithDetails("payload is neither Shift_JIS nor UTF-8").
			WithSourceURL(sourceURL).
			WithCause(err)
	}

	s.logger.Debug("fetched %s (%d bytes)", sourceURL, len(decoded))
	return decoded, sourceURL, nil
}

// doRequest performs one HTTP attempt. Transport errors and 5xx responses
// come back as errors so the circuit breaker counts them; any other
// response is a breaker success and classified by the caller.
func (s *MizuhoSource) doRequest(ctx context.Context, path, sourceURL string) (any, error) {
	resp, err := s.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, ErrFetchFailed.WithDetailsf("GET %s", sourceURL).WithSourceURL(sourceURL).WithCause(err)
	}
	if resp.StatusCode() >= 500 {
		return nil, ErrFetchFailed.WithDetailsf("provider returned HTTP %d", resp.StatusCode()).WithSourceURL(sourceURL)
	}
	return resp, nil
}

// decodeProviderText converts a provider payload to UTF-8. Payloads that
// already are valid UTF-8 pass through untouched; everything else is
// treated as the Shift_JIS the provider actually serves. The Shift_JIS
// decoder substitutes undecodable bytes instead of failing, so the
// substitution rune is checked explicitly.
func decodeProviderText(body []byte) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(body)
	if err != nil {
		return nil, err
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return nil, fmt.Errorf("payload contains undecodable bytes")
	}
	return decoded, nil
}
