package main

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Size of the error placeholder texture
const (
	placeholderWidth  = 400
	placeholderHeight = 300
)

// TextureCache keeps GPU textures for recently shown cache entries. Keys
// carry the entry generation, so a reloaded image never reuses a stale
// texture. Evicted textures are deallocated immediately.
type TextureCache struct {
	cache *lru.Cache[LoadToken, *ebiten.Image]
}

// NewTextureCache creates a texture cache holding up to size textures
func NewTextureCache(size int) *TextureCache {
	onEvict := func(_ LoadToken, img *ebiten.Image) {
		if img != nil {
			img.Deallocate()
		}
	}
	cache, err := lru.NewWithEvict[LoadToken, *ebiten.Image](size, onEvict)
	if err != nil {
		log.Printf("Error: Failed to create texture cache: %v", err)
		cache, _ = lru.NewWithEvict[LoadToken, *ebiten.Image](defaultTextureCacheSize, onEvict)
	}
	return &TextureCache{cache: cache}
}

// Texture returns the texture for a settled entry: the decoded image when
// Ready, an error placeholder when Failed, nil otherwise.
func (t *TextureCache) Texture(entry EntrySnapshot) *ebiten.Image {
	if entry.State != StateReady && entry.State != StateFailed {
		return nil
	}

	key := LoadToken{Path: entry.Path, Generation: entry.Generation}
	if img, ok := t.cache.Get(key); ok {
		return img
	}

	var img *ebiten.Image
	if entry.State == StateReady && entry.Image != nil {
		img = ebiten.NewImageFromImage(entry.Image.RGBA())
	} else {
		img = CreateErrorImage(placeholderWidth, placeholderHeight, entry.Path, errorKind(entry.Err), errorReason(entry.Err))
	}

	t.cache.Add(key, img)
	debugLog("Texture created for %s (generation %d, textures: %d)", entry.Path, entry.Generation, t.cache.Len())
	return img
}

// Len returns the number of cached textures
func (t *TextureCache) Len() int {
	return t.cache.Len()
}

// Purge deallocates every cached texture
func (t *TextureCache) Purge() {
	t.cache.Purge()
}
