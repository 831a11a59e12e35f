package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Remote calls an HTTP judge service with {guess, secret} and expects
// {score, reasoning, xpDelta} back. A missing xpDelta means "same as score".
type Remote struct {
	URL   string
	Token string
	http  *http.Client
}

func NewRemote(url, token string) *Remote {
	return &Remote{URL: strings.TrimRight(url, "/"), Token: token, http: &http.Client{Timeout: 30 * time.Second}}
}

func (r *Remote) Score(ctx context.Context, guess, secret string) (Verdict, error) {
	if r.URL == "" {
		return Verdict{}, errors.New("missing JUDGE_URL")
	}
	b, err := json.Marshal(map[string]string{"guess": guess, "secret": secret})
	if err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(b))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Verdict{}, fmt.Errorf("judge status %d", resp.StatusCode)
	}
	var out struct {
		Score     *float64 `json:"score"`
		Reasoning string   `json:"reasoning"`
		XPDelta   *float64 `json:"xpDelta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("decode judge response: %w", err)
	}
	if out.Score == nil {
		return Verdict{}, fmt.Errorf("%w: missing score", ErrUnusable)
	}
	v := Verdict{Score: *out.Score, Reasoning: out.Reasoning, XPDelta: *out.Score}
	if out.XPDelta != nil {
		v.XPDelta = *out.XPDelta
	}
	return v, nil
}
