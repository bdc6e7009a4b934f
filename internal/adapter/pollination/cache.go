package pollination

import (
	"context"

	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/lru"
)

// CachedClient is a Client whose recipe lookups go through an LRU cache.
// Recipe definitions are immutable per tag.
type CachedClient struct {
	*Client
	recipes *lru.Cache[domain.RecipeRef, domain.Recipe]
}

// WithRecipeCache wraps c with a recipe cache of maxEntries.
func WithRecipeCache(c *Client, maxEntries int) *CachedClient {
	return &CachedClient{
		Client:  c,
		recipes: lru.New[domain.RecipeRef, domain.Recipe](maxEntries),
	}
}

// GetRecipe serves the recipe from the cache, fetching it on a miss.
func (c *CachedClient) GetRecipe(ctx context.Context, ref domain.RecipeRef) (domain.Recipe, error) {
	if r, ok := c.recipes.Get(ref); ok {
		return r, nil
	}
	r, err := c.Client.GetRecipe(ctx, ref)
	if err != nil {
		return r, err
	}
	c.recipes.Put(ref, r)
	return r, nil
}
