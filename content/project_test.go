package content

import (
	"context"
	"net/http"
	"testing"

	"github.com/rootsecops/folio/github"
	"github.com/stretchr/testify/require"
)

var projectSource = Source{
	Repo: github.Repo{Owner: "rootsecops", Name: "rootsecops.io", Branch: "main"},
	Path: "projects",
}

const folioProject = `---
title: Folio
description: Content service for the portfolio
tags: [go, github]
githubLink: https://github.com/rootsecops/folio
demoLink: https://rootsecops.dev
date: 2024-05-01
---
Short intro.`

func TestProjectsListAll(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.markdownDir(projectSource,
		mdFile{name: "folio.md", text: folioProject},
		mdFile{name: "scanner.md", text: "---\ntitle: Scanner\ndate: 2024-07-01\nimage: /img/scanner.png\nimageHint: terminal output\n---\nPort scanner."},
		mdFile{name: "bare.md", text: "---\ndate: 2023-01-01\n---\n"},
	)

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	list := projects.ListAll(context.Background())
	require.Len(t, list, 3)

	require.Equal(t, []string{"scanner", "folio", "bare"}, []string{list[0].Slug, list[1].Slug, list[2].Slug})

	require.Equal(t, "terminal output", list[0].ImageHint)
	require.Equal(t, "/img/scanner.png", list[0].Image)

	require.Equal(t, "Folio", list[1].Title)
	require.Equal(t, "Content service for the portfolio", list[1].Description)
	require.Equal(t, DefaultImageHint, list[1].ImageHint)
	require.Equal(t, "https://github.com/rootsecops/folio", list[1].GithubLink)
	require.Equal(t, "https://rootsecops.dev", list[1].DemoLink)
	require.Equal(t, []string{"go", "github"}, list[1].Tags)
	require.Equal(t, "2024-05-01T00:00:00.000Z", list[1].Date)
	require.Nil(t, list[1].Stars)

	require.Equal(t, "Untitled Project", list[2].Title)
	require.Equal(t, []string{}, list[2].Tags)
}

func TestProjectsListAll_ServerErrorDegradesToEmpty(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.status(contentsPath(projectSource, "projects"), http.StatusInternalServerError)

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	require.Empty(t, projects.ListAll(context.Background()))
}

func TestProjectsGetBySlug_Enriched(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.markdownDir(projectSource, mdFile{name: "folio.md", text: folioProject})
	gh.body("/repos/rootsecops/folio", `{"full_name":"rootsecops/folio","stargazers_count":12,"forks_count":3,"pushed_at":"2024-06-02T08:30:00Z"}`)
	gh.body("/repos/rootsecops/folio/readme", "# Folio\n\n![architecture](./docs/arch.png)\n\nThe full story.")

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	p, err := projects.GetBySlug(context.Background(), "folio")
	require.NoError(t, err)

	require.Equal(t, "Folio", p.Title)
	require.Contains(t, p.Content, "The full story.")
	require.Contains(t, p.HTML, `<h1 id="folio">Folio</h1>`)
	require.NotNil(t, p.Stars)
	require.Equal(t, 12, *p.Stars)
	require.Equal(t, 3, *p.Forks)
	require.Equal(t, "2024-06-02T08:30:00.000Z", p.LastUpdated)
	require.Equal(t, gh.srv.URL+"/raw/rootsecops/folio/HEAD/docs/arch.png", p.Image)

	// The listing copy is left untouched.
	list := projects.ListAll(context.Background())
	require.Equal(t, "Short intro.", list[0].Content)
	require.Nil(t, list[0].Stars)

	// Detail lookups are cached.
	_, err = projects.GetBySlug(context.Background(), "folio")
	require.NoError(t, err)
	require.Equal(t, 1, gh.count("/repos/rootsecops/folio/readme"))
}

func TestProjectsGetBySlug_ReadmeUnavailable(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.markdownDir(projectSource, mdFile{name: "folio.md", text: folioProject})
	gh.status("/repos/rootsecops/folio", http.StatusInternalServerError)

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	p, err := projects.GetBySlug(context.Background(), "folio")
	require.NoError(t, err)
	require.Equal(t, "Short intro.", p.Content)
	require.Nil(t, p.Stars)
	require.Empty(t, p.Image)
}

func TestProjectsGetBySlug_KeepsDeclaredImage(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.markdownDir(projectSource, mdFile{
		name: "folio.md",
		text: "---\ntitle: Folio\nimage: https://cdn.example.com/folio.png\ngithubLink: https://github.com/rootsecops/folio\n---\nIntro",
	})
	gh.body("/repos/rootsecops/folio/readme", "![other](https://example.com/other.png)")

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	p, err := projects.GetBySlug(context.Background(), "folio")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/folio.png", p.Image)
}

func TestProjectsGetBySlug_DirectFetch(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.listing(projectSource, "projects")
	gh.file(projectSource, "projects/hidden.md", "---\ntitle: Hidden\n---\nNot listed yet.")

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)
	p, err := projects.GetBySlug(context.Background(), "hidden")
	require.NoError(t, err)
	require.Equal(t, "Hidden", p.Title)
	require.Equal(t, "Not listed yet.", p.Content)
	require.Equal(t, DefaultImageHint, p.ImageHint)
}

func TestProjectsGetBySlug_NotFound(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.listing(projectSource, "projects")

	projects := NewProjects(gh.client(), newTestCache(), projectSource, testOptions()...)

	_, err := projects.GetBySlug(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = projects.GetBySlug(context.Background(), "../secrets")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseRepoLink(t *testing.T) {
	tests := []struct {
		link  string
		owner string
		name  string
		ok    bool
	}{
		{link: "https://github.com/rootsecops/folio", owner: "rootsecops", name: "folio", ok: true},
		{link: "https://www.github.com/rootsecops/folio.git", owner: "rootsecops", name: "folio", ok: true},
		{link: "https://github.com/rootsecops/folio/tree/main/docs", owner: "rootsecops", name: "folio", ok: true},
		{link: "https://github.com/rootsecops", ok: false},
		{link: "https://gitlab.com/rootsecops/folio", ok: false},
		{link: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			owner, name, ok := parseRepoLink(tt.link)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.owner, owner)
			require.Equal(t, tt.name, name)
		})
	}
}
