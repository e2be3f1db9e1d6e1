// Package gitlab is the GitLab adapter for the Repository Capability
// (§4.C). The low-level transport (API-version guessing, pagination,
// request helpers) is adapted directly from the teacher's
// pkg/client/gitlab package; Adapter (in adapter.go) is new and maps
// this transport onto the repository.Repository interface the core
// consumes.
package gitlab

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gopkg.in/resty.v0"
)

// Client is a thin, version-negotiating GitLab REST client.
type Client struct {
	HasV4Support bool
	HasV3Support bool
	Endpoint     string
	Token        string
	APIPrefix    string
}

var (
	// ErrInvalidToken is returned when the GitLab host rejects the
	// configured token.
	ErrInvalidToken = errors.New("gitlab: invalid token")

	// ErrInvalidEndpoint is returned when neither the v4 nor the v3 API
	// responds the way GitLab is expected to.
	ErrInvalidEndpoint = errors.New("gitlab: invalid endpoint")
)

// NewClient probes endpoint to determine which API version it speaks
// and validates token in the process.
func NewClient(endpoint string, token string) (*Client, error) {
	client := &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Token:    token,
	}

	if err := client.guessAPIVersion(); err != nil {
		return nil, err
	}

	return client, nil
}

// guessAPIVersion performs a HEAD request against /api/v4/user, falling
// back to /api/v3/user, to pick an API prefix and validate the token in
// one round trip per version.
func (c *Client) guessAPIVersion() error {
	resp, _ := c.executeHead("/api/v4/user")
	if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp != nil && resp.StatusCode() == http.StatusOK {
		c.HasV4Support = true
		c.APIPrefix = "/api/v4"
		return nil
	}

	resp, _ = c.executeHead("/api/v3/user")
	if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	if resp != nil && resp.StatusCode() == http.StatusOK {
		c.HasV3Support = true
		c.APIPrefix = "/api/v3"
		return nil
	}

	return ErrInvalidEndpoint
}

// executeAPIMethod performs a GET against baseRequestURI and follows
// GitLab's X-Next-Page/X-Total-Pages pagination headers, fetching
// remaining pages concurrently.
func (c *Client) executeAPIMethod(baseRequestURI string) ([][]byte, error) {
	list := make([][]byte, 0)
	baseRequestURI = strings.TrimLeft(baseRequestURI, "/")
	baseRequestURI = fmt.Sprintf("%s/%s", c.APIPrefix, baseRequestURI)
	const perPage = 30

	addArg := "?"
	if strings.Contains(baseRequestURI, "?") {
		addArg = "&"
	}

	reqURI := fmt.Sprintf("%s%sper_page=%d", baseRequestURI, addArg, perPage)
	resp, err := c.executeGet(reqURI)
	if err != nil {
		return nil, err
	}

	list = append(list, resp.Body())
	totalPagesRaw := resp.Header().Get("X-Total-Pages")
	nextPageRaw := resp.Header().Get("X-Next-Page")

	if nextPageRaw == "" {
		return list, nil
	}

	nextPage, err := strconv.Atoi(nextPageRaw)
	if err != nil {
		return nil, err
	}

	totalPages, err := strconv.Atoi(totalPagesRaw)
	if err != nil {
		return nil, err
	}

	bodyChan := make(chan []byte)
	guardChan := make(chan bool, 4)

	for i := nextPage; i <= totalPages; i++ {
		go func(i int) {
			guardChan <- true
			defer func() { <-guardChan }()

			reqURI := fmt.Sprintf("%s%sper_page=%d&page=%d", baseRequestURI, addArg, perPage, i)
			resp, err := c.executeGet(reqURI)
			if err != nil {
				bodyChan <- nil
				return
			}
			bodyChan <- resp.Body()
		}(i)
	}

	for j := nextPage; j <= totalPages; j++ {
		b := <-bodyChan
		if b != nil {
			list = append(list, b)
		}
	}

	if len(list) != totalPages {
		return nil, errors.New("gitlab: failed to fetch some pages")
	}

	return list, nil
}

func (c *Client) executeHead(requestURI string) (*resty.Response, error) {
	requestURI = strings.TrimLeft(requestURI, "/")
	requestURL := fmt.Sprintf("%s/%s", c.Endpoint, requestURI)

	return resty.R().SetHeader("PRIVATE-TOKEN", c.Token).Head(requestURL)
}

func (c *Client) executeGet(requestURI string) (*resty.Response, error) {
	requestURI = strings.TrimLeft(requestURI, "/")
	requestURL := fmt.Sprintf("%s/%s", c.Endpoint, requestURI)

	return resty.R().SetHeader("PRIVATE-TOKEN", c.Token).Get(requestURL)
}
