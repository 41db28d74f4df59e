package trustedproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"golang.org/x/sync/errgroup"
)

var ErrRangeProviderHTTPStatus = errors.New("failed to fetch provider ranges")

const (
	defaultProviderTimeout = 10 * time.Second
	maxFetchAttempts       = 5
	initialFetchDelay      = 1 * time.Second
)

// rangeProvider describes a remote service publishing CIDR blocks, one block
// per line.
type rangeProvider struct {
	once  *sync.Once
	cache *[]string
	name  string
	urls  []string
}

// providerRanges fetches and caches the provider's published blocks. URLs are
// fetched concurrently; a URL that keeps failing is skipped rather than
// fatal, so callers can fall back to embedded defaults when nothing at all
// came back.
func (g *Guard) providerRanges(ctx context.Context, provider rangeProvider) []string {
	provider.once.Do(func() {
		results := make([][]string, len(provider.urls))

		group, groupCtx := errgroup.WithContext(ctx)
		for i, url := range provider.urls {
			i, url := i, url
			group.Go(func() error {
				ranges, err := g.fetchProviderURL(groupCtx, provider.name, url)
				if err != nil {
					g.logger.ErrorContext(
						groupCtx,
						"Error fetching provider ranges",
						slog.String("provider", provider.name),
						slog.String("url", url),
						ErrorAttrWithoutStack(err),
					)

					// Skip this URL, keep the rest.
					return nil
				}

				results[i] = ranges

				return nil
			})
		}

		// Errors are handled per URL above, Wait only synchronizes.
		_ = group.Wait()

		merged := make([]string, 0)
		for _, ranges := range results {
			merged = append(merged, ranges...)
		}

		*provider.cache = merged
	})

	return *provider.cache
}

// fetchProviderURL downloads one URL with exponential backoff. Client errors
// (4xx) are terminal, everything else is retried.
func (g *Guard) fetchProviderURL(
	ctx context.Context,
	providerName string,
	url string,
) ([]string, error) {
	client := &http.Client{Timeout: defaultProviderTimeout}

	body, err := retry.NewWithData[string](
		retry.Context(ctx),
		retry.Attempts(maxFetchAttempts),
		retry.Delay(initialFetchDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			g.logger.WarnContext(
				ctx,
				"Retrying provider fetch",
				slog.String("provider", providerName),
				slog.String("url", url),
				slog.Uint64("attempt", uint64(attempt)+1),
				ErrorAttrWithoutStack(err),
			)
		}),
	).Do(func() (string, error) {
		return g.requestProviderBody(ctx, client, providerName, url)
	})
	if err != nil {
		return nil, err
	}

	return g.parseProviderBody(ctx, providerName, body), nil
}

func (g *Guard) requestProviderBody(
	ctx context.Context,
	client *http.Client,
	providerName string,
	url string,
) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching %s ranges: %w", providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%w: %s", ErrRangeProviderHTTPStatus, resp.Status)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// A client error will not change on retry.
			return "", retry.Unrecoverable(statusErr)
		}

		return "", statusErr
	}

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	return string(bytes), nil
}

// parseProviderBody keeps the well-formed CIDR lines of the response.
// Malformed lines are logged and dropped instead of failing the whole fetch;
// a dropped line could never grant trust anyway.
func (g *Guard) parseProviderBody(ctx context.Context, providerName, body string) []string {
	ranges := make([]string, 0)

	for _, line := range strings.Split(body, "\n") {
		r := strings.TrimSpace(line)
		if r == "" {
			continue
		}

		if !validCIDR(r) {
			g.logger.WarnContext(
				ctx,
				"Skipping malformed CIDR",
				slog.String("provider", providerName),
				slog.String("cidr", r),
			)

			continue
		}

		ranges = append(ranges, r)
	}

	return ranges
}
