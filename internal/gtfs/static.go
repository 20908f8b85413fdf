package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocarina/gocsv"
	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/internal/logging"
)

// fetch reads source from disk or over HTTP. Remote fetches are retried
// with exponential backoff until ctx expires; 4xx answers are final.
func fetch(ctx context.Context, client *http.Client, source string, isLocalFile bool, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	if isLocalFile {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for key, value := range headers {
			req.Header.Add(key, value)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer logging.SafeCloseWithLogging(resp.Body, logger, "http_response_body")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("GET %s: %s", source, resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: %s", source, resp.Status)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying download", slog.String("url", source), slog.String("error", err.Error()), slog.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, fmt.Errorf("error downloading %s: %w", source, err)
	}
	return body, nil
}

// TransferRow is one line of transfers.txt. The feed parser drops rows
// whose two stops are the same, so those are read separately.
type TransferRow struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    int    `csv:"transfer_type"`
	MinTransferTime int    `csv:"min_transfer_time"`
}

// readSameStopTransfers returns the transfers.txt rows that start and end at
// the same stop. A missing file yields nothing.
func readSameStopTransfers(archive []byte, logger *slog.Logger) (rows []TransferRow, err error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open GTFS archive: %w", err)
	}
	f, err := zr.Open("transfers.txt")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer logging.HandleDeferredError(&err, f.Close, logger, "close_transfers.txt")
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("parse transfers.txt: %w", err)
	}
	return slices.DeleteFunc(rows, func(r TransferRow) bool { return r.FromStopID != r.ToStopID }), nil
}

// LoadStatic fetches, parses and converts a static feed.
func LoadStatic(ctx context.Context, config Config) (*Feed, error) {
	logger := logging.Component(config.logger(), "gtfs_static_loader")
	b, err := fetch(ctx, config.client(), config.GtfsURL, config.isLocalFile(), nil, logger)
	if err != nil {
		return nil, err
	}
	return ParseStatic(b, config.Build, logger)
}

// ParseStatic converts the bytes of a feed archive.
func ParseStatic(archive []byte, opts BuildOptions, logger *slog.Logger) (*Feed, error) {
	static, err := gtfs.ParseStatic(archive, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	sameStop, err := readSameStopTransfers(archive, logger)
	if err != nil {
		return nil, err
	}
	feed, err := BuildDataset(static, sameStop, opts)
	if err != nil {
		return nil, err
	}
	if len(feed.Skipped) > 0 {
		logger.Warn("skipped unusable trips", slog.Int("count", len(feed.Skipped)), slog.String("first", feed.Skipped[0]))
	}
	return feed, nil
}
