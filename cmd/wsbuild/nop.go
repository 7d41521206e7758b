package main

import (
	"context"
	"errors"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/nodedist"
	"github.com/ZebulonRouseFrantzich/wsbuild/internal/workspace"
)

var errListOnly = errors.New("graph built for listing only")

type nopFetcher struct{}

func (nopFetcher) EnsureDownloaded(context.Context, nodedist.Release, string) (*nodedist.Result, error) {
	return nil, errListOnly
}

func (nopFetcher) EnsureUnpacked(context.Context, string, string, string) (*nodedist.Result, error) {
	return nil, errListOnly
}

type nopCommander struct{}

func (nopCommander) Run(context.Context, workspace.Command) error { return errListOnly }
