package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/mydia/mydia/pkg/release"
)

// TorznabClient queries one Torznab/Newznab-compatible indexer.
type TorznabClient struct {
	name       string
	baseURL    string
	apiKey     string
	protocol   string // torrent or usenet
	httpClient *http.Client
	log        *slog.Logger
}

func NewTorznabClient(name, baseURL, apiKey, protocol string, log *slog.Logger) *TorznabClient {
	if log == nil {
		log = slog.Default()
	}
	if protocol == "" {
		protocol = "usenet"
	}
	return &TorznabClient{
		name:     name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		protocol: protocol,
		log:      log.With("component", "torznab", "indexer", name),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *TorznabClient) Name() string { return c.name }

// Torznab RSS response structures. The torznab attr namespace carries
// seeders for torrent indexers; newznab attrs carry size for usenet.
type rssResponse struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	GUID      string       `xml:"guid"`
	Link      string       `xml:"link"`
	Size      int64        `xml:"size"`
	PubDate   string       `xml:"pubDate"`
	Enclosure rssEnclosure `xml:"enclosure"`
	Attrs     []rssAttr    `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

var pubDateFormats = []string{
	time.RFC1123Z,
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	time.RFC1123,
}

// Search queries the indexer and returns parsed candidates.
func (c *TorznabClient) Search(ctx context.Context, query string) ([]Release, error) {
	start := time.Now()

	reqURL, err := url.Parse(c.baseURL + "/api")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", "search")
	if query != "" {
		params.Set("q", query)
	}
	params.Set("limit", "100")
	reqURL.RawQuery = params.Encode()

	var rss rssResponse
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("unexpected status: %d", resp.StatusCode))
			}
			rss = rssResponse{}
			if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
				return retry.Unrecoverable(fmt.Errorf("parse response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.name, err)
	}

	releases := make([]Release, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		rel := Release{
			Title:       item.Title,
			GUID:        item.GUID,
			DownloadURL: item.Link,
			Size:        item.Size,
			Seeders:     -1,
			Indexer:     c.name,
			Protocol:    c.protocol,
		}
		if rel.DownloadURL == "" && item.Enclosure.URL != "" {
			rel.DownloadURL = item.Enclosure.URL
		}
		if rel.Size == 0 && item.Enclosure.Length > 0 {
			rel.Size = item.Enclosure.Length
		}
		if item.PubDate != "" {
			for _, format := range pubDateFormats {
				if t, err := time.Parse(format, item.PubDate); err == nil {
					rel.PublishDate = t
					break
				}
			}
		}
		for _, attr := range item.Attrs {
			switch attr.Name {
			case "seeders":
				if n, err := strconv.Atoi(attr.Value); err == nil {
					rel.Seeders = n
				}
			case "size":
				if rel.Size == 0 {
					rel.Size, _ = strconv.ParseInt(attr.Value, 10, 64)
				}
			}
		}
		rel.Info = release.Parse(rel.Title)
		releases = append(releases, rel)
	}

	c.log.Debug("search complete", "query", query, "results", len(releases),
		"duration_ms", time.Since(start).Milliseconds())
	return releases, nil
}
