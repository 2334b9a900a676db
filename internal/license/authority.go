package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/logging"
)

// VerifyKeyPath is the route of the key exchange.
const VerifyKeyPath = "/api/verify-key"

// Grant is one API key known to the Authority.
type Grant struct {
	// Key is the API key presented by clients.
	Key string `yaml:"key"`
	// Secret is the decryption key handed out, usually hex.
	Secret string `yaml:"secret"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`
	// MAC binds the grant to a device. Empty grants bind to the first device that asks.
	MAC string `yaml:"mac,omitempty"`
	// Whitelisted grants accept any device.
	Whitelisted bool `yaml:"whitelisted,omitempty"`
}

// IsEnabled reports whether the grant may be used.
func (g Grant) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// grantsFile is the on-disk form of the grants.
type grantsFile struct {
	Grants []Grant `yaml:"grants"`
}

// LoadGrants reads grants from a YAML file.
func LoadGrants(path string) ([]Grant, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading grants: %w", err)
	}

	var file grantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing grants %q: %w", path, err)
	}

	for i, grant := range file.Grants {
		if grant.Key == "" || grant.Secret == "" {
			return nil, fmt.Errorf("grant %d in %q: key and secret are required", i, path)
		}
	}

	return file.Grants, nil
}

// Authority is a development license server implementing the key exchange.
// Device bindings are kept in memory only.
type Authority struct {
	mu      sync.Mutex
	grants  map[string]*Grant
	logger  *logrus.Logger
	metrics *Metrics
	mux     *http.ServeMux

	now func() time.Time
}

// NewAuthority returns an Authority serving grants. Metrics and logger may be nil.
func NewAuthority(grants []Grant, metrics *Metrics, logger *logrus.Logger) (*Authority, error) {
	if metrics == nil {
		var err error
		if metrics, err = NewMetrics(nil); err != nil {
			return nil, err
		}
	}

	authority := &Authority{
		grants:  make(map[string]*Grant, len(grants)),
		logger:  logging.OrDiscard(logger),
		metrics: metrics,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	for _, grant := range grants {
		if _, ok := authority.grants[grant.Key]; ok {
			return nil, fmt.Errorf("duplicate grant for key %q", logging.Truncate(grant.Key, 4))
		}

		authority.grants[grant.Key] = &grant
	}

	authority.mux.HandleFunc("POST "+VerifyKeyPath, authority.verifyKey)

	return authority, nil
}

// ServeHTTP implements http.Handler.
func (a *Authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *Authority) verifyKey(w http.ResponseWriter, r *http.Request) {
	var req Request

	if err := json.NewDecoder(io.LimitReader(r.Body, maxResponseSize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.reply(w, http.StatusBadRequest, OutcomeBadRequest, Response{Error: "invalid JSON body"})

		return
	}

	if req.Key == "" || req.MAC == "" || req.CPU == "" {
		a.reply(w, http.StatusBadRequest, OutcomeBadRequest, Response{Error: "missing parameters"})

		return
	}

	mac := strings.ToLower(req.MAC)
	log := a.logger.WithFields(logrus.Fields{"mac": mac, "hardware": req.CPU})

	a.mu.Lock()
	defer a.mu.Unlock()

	grant, ok := a.grants[req.Key]
	if !ok || !grant.IsEnabled() {
		log.Warn("unknown or disabled API key")
		a.reply(w, http.StatusUnauthorized, OutcomeDenied, Response{Error: "invalid key"})

		return
	}

	switch {
	case grant.MAC == "":
		grant.MAC = mac

		log.Info("API key bound to device")
	case grant.MAC != mac && !grant.Whitelisted:
		log.WithField("bound", grant.MAC).Warn("MAC changed")
		a.reply(w, http.StatusForbidden, OutcomeMACChanged, Response{Error: "MAC changed"})

		return
	}

	ts := a.now().Unix()

	a.reply(w, http.StatusOK, OutcomeGranted, Response{
		Success:   true,
		XORResult: Obfuscate(grant.Secret, ts),
		Timestamp: ts,
	})
}

func (a *Authority) reply(w http.ResponseWriter, status int, outcome string, body Response) {
	a.metrics.Observe(outcome)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.WithError(err).Error("writing response")
	}
}
