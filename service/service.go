// Package service runs the outer driver: retrain indefinitely, and after
// each round ask the serving process over HTTP to reload the refreshed
// checkpoint.
package service

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Trainer is the slice of the training loop the service drives.
type Trainer interface {
	Run(ctx context.Context) error
}

// Notifier issues the model-reload notification with bounded retries.
type Notifier struct {
	// URL of the reload endpoint, e.g. "http://translator:5000/reload".
	URL string

	// Client defaults to an http.Client with a 5 second timeout.
	Client *http.Client

	// Attempts defaults to 3; Backoff (linear, per attempt) to 1 second.
	Attempts int
	Backoff  time.Duration
}

// Notify performs a GET on the reload endpoint with the language pair as
// the "lang" query parameter. Any HTTP response counts as delivered; the
// status is logged, not validated. Transport errors are retried up to
// Attempts times with linear backoff.
func (n *Notifier) Notify(ctx context.Context, langPair string) error {
	u, err := url.Parse(n.URL)
	if err != nil {
		return errors.Wrapf(err, "parsing notification URL %q", n.URL)
	}
	query := u.Query()
	query.Set("lang", langPair)
	u.RawQuery = query.Encode()

	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	attempts := n.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := n.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return errors.Wrap(err, "building notification request")
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			klog.Infof("Requested translator service to reload its model, response status: %d", resp.StatusCode)
			return nil
		}
		lastErr = err
		klog.Warningf("reload notification attempt %d/%d failed: %v", attempt, attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return errors.WithMessagef(lastErr, "reload notification failed after %d attempts", attempts)
}

// Loop trains and notifies forever, until ctx is cancelled. A failed
// notification is logged but does not stop retraining; a training error is
// fatal and returned.
func Loop(ctx context.Context, trainer Trainer, notifier *Notifier, langPair string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := trainer.Run(ctx); err != nil {
			return errors.WithMessage(err, "training")
		}
		if err := notifier.Notify(ctx, langPair); err != nil {
			klog.Errorf("reload notification: %v", err)
		}
	}
}
