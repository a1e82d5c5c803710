package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/meigma/rangezip"
	"github.com/meigma/rangezip/cache"
	"github.com/meigma/rangezip/cache/disk"
	"github.com/meigma/rangezip/cache/memory"
	zhttp "github.com/meigma/rangezip/http"
	"github.com/meigma/rangezip/mmap"
)

// openArchive opens the archive at location, a local path or an http(s)
// URL, layering the configured block caches over the source.
func (a *app) openArchive(ctx context.Context, location string) (*rangezip.Archive, error) {
	src, err := a.openSource(ctx, location)
	if err != nil {
		return nil, err
	}

	src, err = a.wrapCaches(src)
	if err != nil {
		return nil, err
	}

	opts := []rangezip.Option{
		rangezip.WithLogger(a.log),
		rangezip.WithMinReadSize(a.cfg.MinReadSize),
		rangezip.WithMaxPrefetch(a.cfg.MaxPrefetch),
	}
	if a.cfg.Password != "" {
		opts = append(opts, rangezip.WithDefaultPassword(a.cfg.Password))
	}
	archive, err := rangezip.Open(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return archive, nil
}

func (a *app) openSource(ctx context.Context, location string) (cache.Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		opts := []zhttp.Option{
			zhttp.WithClient(newHTTPClient()),
			zhttp.WithContext(ctx),
			zhttp.WithLogger(a.log),
		}
		for _, kv := range a.cfg.HeaderPairs() {
			opts = append(opts, zhttp.WithHeader(kv[0], kv[1]))
		}
		return zhttp.NewSource(location, opts...)
	}

	src, err := mmap.Open(location)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, src.Close)
	return src, nil
}

// wrapCaches layers the memory cache over the disk cache over src, so hot
// blocks are served from memory and warm blocks survive restarts.
func (a *app) wrapCaches(src cache.Source) (cache.Source, error) {
	wrapOpts := []cache.WrapOption{
		cache.WithBlockSize(a.cfg.BlockSize),
		cache.WithLogger(a.log),
	}
	if a.cfg.CacheDir != "" {
		dc, err := disk.New(a.cfg.CacheDir, disk.WithMaxBytes(a.cfg.CacheMaxBytes))
		if err != nil {
			return nil, fmt.Errorf("disk cache: %w", err)
		}
		wrapped, err := cache.Wrap(src, dc, wrapOpts...)
		if err != nil {
			return nil, err
		}
		src = wrapped
	}
	if a.cfg.MemoryCacheBlocks > 0 {
		mc, err := memory.New(a.cfg.MemoryCacheBlocks)
		if err != nil {
			return nil, err
		}
		wrapped, err := cache.Wrap(src, mc, wrapOpts...)
		if err != nil {
			return nil, err
		}
		src = wrapped
	}
	return src, nil
}

func newHTTPClient() *nethttp.Client {
	transport := nethttp.DefaultTransport
	if base, ok := transport.(*nethttp.Transport); ok {
		transport = base.Clone()
	}
	return &nethttp.Client{Transport: transport}
}
