package workspace

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// slugify turns a display name into a URL-safe subdomain label.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "workspace"
	}
	return slug
}

// uniqueSlug appends a numeric suffix until the slug is unclaimed.
// Slugs are the subdomain routing key, so collisions are resolved at
// creation time rather than rejected.
func uniqueSlug(ctx context.Context, workspaces WorkspacesStore, base string) (string, error) {
	slug := base
	for i := 1; ; i++ {
		exists, err := workspaces.ExistsBySlug(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}
