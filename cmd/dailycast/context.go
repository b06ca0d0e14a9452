package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"dailycast/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	clientOnce sync.Once
	client     *resty.Client
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) apiBase() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return "http://" + cfg.Paths.APIBind
	}
	return "http://127.0.0.1:7945"
}

func (c *commandContext) api() *resty.Client {
	c.clientOnce.Do(func() {
		c.client = resty.New().
			SetBaseURL(c.apiBase()).
			SetTimeout(30 * time.Second)
	})
	return c.client
}

type apiError struct {
	Error string `json:"error"`
}

// call performs a daemon API request, decoding the JSON response into
// out when it is non-nil.
func (c *commandContext) call(method, path string, body, out any) error {
	req := c.api().R()
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	var apiErr apiError
	req.SetError(&apiErr)

	resp, err := req.Execute(method, path)
	if err != nil {
		return wrapDialError(err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode())
	}
	return nil
}

// callRaw posts a plain text body, used by the quality endpoint which
// accepts a bare height.
func (c *commandContext) callRaw(method, path, body string, out any) error {
	req := c.api().R().
		SetHeader("Content-Type", "text/plain").
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	var apiErr apiError
	req.SetError(&apiErr)

	resp, err := req.Execute(method, path)
	if err != nil {
		return wrapDialError(err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode())
	}
	return nil
}

func (c *commandContext) get(path string, out any) error {
	return c.call(http.MethodGet, path, nil, out)
}

func wrapDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return errors.New("connect to daemon: connection refused; start the daemon with `dailycastd`")
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
