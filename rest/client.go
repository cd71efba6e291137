// Copyright 2026 The Warden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/warden"
)

// WorkerList is a snapshot of every worker, with the Etag it was
// served under.
type WorkerList struct {
	etag    string
	Workers []warden.WorkerInfo
}

// LogInfo is a snapshot of a log, with the Etag it was served under.
type LogInfo struct {
	name    string
	etag    string
	Records []warden.LogRecord
}

type Client struct {
	user   string // HTTP Basic-Auth
	pass   string
	base   string // URI to root of tree on server
	auth   bool
	client *http.Client
	lock   sync.Mutex
}

// SetAuth sets the credentials used for later requests.  It may be
// called while other requests are in progress.
func (c *Client) SetAuth(user string, pass string) {
	c.lock.Lock()
	c.user = user
	c.pass = pass
	c.auth = true
	c.lock.Unlock()
}

func (c *Client) url(name string) string {
	if name == "" {
		return c.base + "/workers"
	}
	return c.base + "/workers/" + url.PathEscape(name)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.lock.Lock()
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	c.lock.Unlock()
	res, e := c.client.Do(req)
	if e != nil {
		return nil, e
	}
	if res.StatusCode == http.StatusOK ||
		res.StatusCode == http.StatusNotModified {
		return res, nil
	}
	defer res.Body.Close()
	err := &Error{}
	body, _ := io.ReadAll(res.Body)
	if json.Unmarshal(body, err) != nil || err.Message == "" {
		err.Message = res.Status
	}
	err.Code = res.StatusCode
	return nil, err
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {

	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if e := json.NewDecoder(res.Body).Decode(v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) post(ctx context.Context, url string) error {
	req, e := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(""))
	if e != nil {
		return e
	}
	req.Header.Set("Content-Type", "text/plain") // we don't really care
	res, e := c.do(req)
	if e != nil {
		return e
	}
	res.Body.Close()
	return nil
}

// Info returns information about the supervisor itself.
func (c *Client) Info(ctx context.Context) (*warden.Info, error) {
	return c.WatchInfo(ctx, nil)
}

// WatchInfo waits for the supervisor to change from last, which may be
// nil to return immediately.
func (c *Client) WatchInfo(ctx context.Context, last *warden.Info) (*warden.Info, error) {
	v := &warden.Info{}
	etag, wait := "", 0
	if last != nil {
		etag, wait = formatEtag(last.Serial), MaxPollTime
	}
	tag, e := c.poll(ctx, c.base+"/", etag, wait, v)
	if e != nil {
		return nil, e
	}
	if tag == "" {
		return last, nil
	}
	return v, nil
}

// Workers returns information about every worker, in registration order.
func (c *Client) Workers(ctx context.Context) ([]warden.WorkerInfo, error) {
	wl, e := c.WatchWorkers(ctx, nil)
	if e != nil {
		return nil, e
	}
	return wl.Workers, nil
}

// WatchWorkers is like Workers, but waits for the list to differ from last.
func (c *Client) WatchWorkers(ctx context.Context, last *WorkerList) (*WorkerList, error) {
	v := &WorkerList{}
	etag, wait := "", 0
	if last != nil {
		etag, wait = last.etag, MaxPollTime
	}
	tag, e := c.poll(ctx, c.url(""), etag, wait, &v.Workers)
	if e != nil {
		return nil, e
	}
	if tag == "" {
		return last, nil
	}
	v.etag = tag
	return v, nil
}

func (c *Client) Worker(ctx context.Context, name string) (*warden.WorkerInfo, error) {
	v := &warden.WorkerInfo{}
	if _, e := c.poll(ctx, c.url(name), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) pollLog(ctx context.Context, name string, secs int, last *LogInfo) (*LogInfo, error) {

	v := &LogInfo{name: name}
	otag := ""
	if last != nil && last.name == name {
		otag = last.etag
	} else {
		secs = 0
		last = nil
	}

	url := c.base + "/log"
	if name != "" {
		url = c.url(name) + "/log"
	}

	etag, e := c.poll(ctx, url, otag, secs, &v.Records)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return last, nil
	}
	v.etag = etag
	return v, nil
}

// Log returns the retained log for the named worker, or for the whole
// supervisor if name is empty.
func (c *Client) Log(ctx context.Context, name string) (*LogInfo, error) {
	return c.pollLog(ctx, name, 0, nil)
}

func (c *Client) WatchLog(ctx context.Context, name string, last *LogInfo) (*LogInfo, error) {

	// Let the poll wait for up to 300 secs (5 minutes).
	return c.pollLog(ctx, name, MaxPollTime, last)
}

// Reload asks the supervisor to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.post(ctx, c.base+"/reload")
}

// Shutdown asks the supervisor to stop its workers and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.post(ctx, c.base+"/shutdown")
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURI, "/"),
		client: &http.Client{},
	}
	if t != nil {
		c.client.Transport = t
	}
	return c
}
