package main

import (
	"os"

	"github.com/pevans/newsharvest/orchestrator"
	"github.com/pevans/newsharvest/seed"
	"github.com/pevans/newsharvest/store"
)

type scrapeCommand struct {
	Source string `long:"source" description:"ID of a single source to scrape"`
}

func (c *scrapeCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []orchestrator.ScrapeResult
	if c.Source != "" {
		results = []orchestrator.ScrapeResult{a.Orchestrator.ScrapeSource(ctx, c.Source)}
	} else {
		results, err = a.Orchestrator.ScrapeAllSources(ctx)
		if err != nil {
			return err
		}
	}

	printScrapeResults(os.Stdout, results)
	return nil
}

type statusCommand struct{}

func (c *statusCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.Orchestrator.Status(ctx)
	if err != nil {
		return err
	}

	printStatus(os.Stdout, status)
	return nil
}

type articlesCommand struct {
	Source   string `long:"source" description:"Only list articles from this source ID"`
	Page     int    `long:"page" default:"1" description:"Page number"`
	PageSize int    `long:"page-size" default:"20" description:"Articles per page (max 100)"`
	Format   string `long:"format" default:"table" choice:"table" choice:"json" description:"Output format"`
}

func (c *articlesCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.Store.ListArticles(ctx, store.ArticleFilter{
		SourceID: c.Source,
		Page:     c.Page,
		PageSize: c.PageSize,
	})
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return printJSON(os.Stdout, page)
	}
	printArticles(os.Stdout, page)
	return nil
}

type seedCommand struct{}

func (c *seedCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := seed.Sources()
	if err != nil {
		return err
	}

	result, err := seed.Apply(ctx, a.Store, sources, a.Logger)
	if err != nil {
		return err
	}

	printSeedResult(os.Stdout, result)
	return nil
}

type serveCommand struct{}

func (c *serveCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx, a.Config.ListenAddr)
}
