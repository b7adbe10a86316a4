package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/routedoc/internal/crawler"
	"github.com/v0xg/routedoc/internal/orchestrator"
)

var _ orchestrator.Tab = (*crawler.Tab)(nil)

// browserDriver exposes a crawler.Browser as an orchestrator.TabDriver.
type browserDriver struct {
	browser *crawler.Browser
}

func (d browserDriver) Open(ctx context.Context, url string) (orchestrator.Tab, error) {
	t, err := d.browser.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d browserDriver) Active(ctx context.Context) (orchestrator.Tab, error) {
	t, err := d.browser.Active(ctx)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d browserDriver) Tab(id string) (orchestrator.Tab, error) {
	t, err := d.browser.Tab(id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d browserDriver) Activate(ctx context.Context, tab orchestrator.Tab) error {
	t, ok := tab.(*crawler.Tab)
	if !ok {
		return fmt.Errorf("tab %s was not opened by this browser", tab.ID())
	}
	return d.browser.Activate(ctx, t)
}

var errNoBrowser = errors.New("no browser running")

// offlineDriver backs commands that only read the state database.
type offlineDriver struct{}

func (offlineDriver) Open(context.Context, string) (orchestrator.Tab, error) {
	return nil, errNoBrowser
}

func (offlineDriver) Active(context.Context) (orchestrator.Tab, error) {
	return nil, errNoBrowser
}

func (offlineDriver) Tab(string) (orchestrator.Tab, error) {
	return nil, errNoBrowser
}

func (offlineDriver) Activate(context.Context, orchestrator.Tab) error {
	return errNoBrowser
}
