package arbor

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/png" // register the PNG decoder for texture files
	"io/fs"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
)

// MaterialDef is the JSON content of a material file.
type MaterialDef struct {
	Shader    string     `json:"shader"`
	Technique string     `json:"technique"`
	Albedo    [4]float32 `json:"albedo"`
	Roughness float32    `json:"roughness"`
	Textures  []string   `json:"textures,omitempty"`
}

type geometryKey struct{ file, mesh string }

// AssetCache resolves resource names against a file system and hands out
// stable handles: the same name always yields the same handle. Textures are
// decoded into ebiten images. It implements Resources.
type AssetCache struct {
	fsys  fs.FS
	debug bool

	geometries map[geometryKey]GeometryHandle
	materials  map[string]MaterialHandle
	matDefs    []MaterialDef
	animations map[string]AnimationHandle

	textures    map[string]TextureHandle
	images      []*ebiten.Image
	textureName []string
}

// NewAssetCache creates a cache reading from fsys.
func NewAssetCache(fsys fs.FS) *AssetCache {
	return &AssetCache{
		fsys:        fsys,
		geometries:  make(map[geometryKey]GeometryHandle),
		materials:   make(map[string]MaterialHandle),
		matDefs:     []MaterialDef{{}},
		animations:  make(map[string]AnimationHandle),
		textures:    make(map[string]TextureHandle),
		images:      []*ebiten.Image{nil},
		textureName: []string{""},
	}
}

// SetDebug logs every failed lookup when enabled.
func (c *AssetCache) SetDebug(enabled bool) { c.debug = enabled }

func (c *AssetCache) missing(kind, name string, err error) {
	if c.debug {
		log.Printf("arbor: %s %q not found: %v", kind, name, err)
	}
}

func (c *AssetCache) exists(name string) error {
	if name == "" {
		return fs.ErrNotExist
	}
	_, err := fs.Stat(c.fsys, name)
	return err
}

// LoadGeometry resolves a mesh inside a geometry file. The file must exist.
func (c *AssetCache) LoadGeometry(file, mesh string) (GeometryHandle, bool) {
	k := geometryKey{file, mesh}
	if h, ok := c.geometries[k]; ok {
		return h, true
	}
	if err := c.exists(file); err != nil {
		c.missing("geometry", file, err)
		return 0, false
	}
	h := GeometryHandle(len(c.geometries) + 1)
	c.geometries[k] = h
	return h, true
}

// LoadMaterial parses a JSON material file. Non-empty shader and technique
// arguments override the file's.
func (c *AssetCache) LoadMaterial(name, shader, technique string) (MaterialHandle, bool) {
	if h, ok := c.materials[name]; ok {
		return h, true
	}
	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		c.missing("material", name, err)
		return 0, false
	}
	var def MaterialDef
	if err := json.Unmarshal(data, &def); err != nil {
		c.missing("material", name, fmt.Errorf("parse: %w", err))
		return 0, false
	}
	if shader != "" {
		def.Shader = shader
	}
	if technique != "" {
		def.Technique = technique
	}
	h := MaterialHandle(len(c.matDefs))
	c.matDefs = append(c.matDefs, def)
	c.materials[name] = h
	return h, true
}

// Material returns the definition behind h.
func (c *AssetCache) Material(h MaterialHandle) (MaterialDef, bool) {
	if h == 0 || int(h) >= len(c.matDefs) {
		return MaterialDef{}, false
	}
	return c.matDefs[h], true
}

// LoadAnimation resolves an animation clip file.
func (c *AssetCache) LoadAnimation(file string) (AnimationHandle, bool) {
	if h, ok := c.animations[file]; ok {
		return h, true
	}
	if err := c.exists(file); err != nil {
		c.missing("animation", file, err)
		return 0, false
	}
	h := AnimationHandle(len(c.animations) + 1)
	c.animations[file] = h
	return h, true
}

// LoadTexture decodes an image file into an ebiten image.
func (c *AssetCache) LoadTexture(name string) (TextureHandle, bool) {
	if h, ok := c.textures[name]; ok {
		return h, true
	}
	f, err := c.fsys.Open(name)
	if err != nil {
		c.missing("texture", name, err)
		return 0, false
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		c.missing("texture", name, fmt.Errorf("decode: %w", err))
		return 0, false
	}
	h := TextureHandle(len(c.images))
	c.images = append(c.images, ebiten.NewImageFromImage(img))
	c.textureName = append(c.textureName, name)
	c.textures[name] = h
	return h, true
}

// TextureName returns the name h was loaded from.
func (c *AssetCache) TextureName(h TextureHandle) string {
	if int(h) >= len(c.textureName) {
		return ""
	}
	return c.textureName[h]
}

// Image returns the ebiten image behind h, or nil.
func (c *AssetCache) Image(h TextureHandle) *ebiten.Image {
	if int(h) >= len(c.images) {
		return nil
	}
	return c.images[h]
}

// Close deallocates every texture and forgets every handle.
func (c *AssetCache) Close() {
	for _, img := range c.images {
		if img != nil {
			img.Deallocate()
		}
	}
	fsys, debug := c.fsys, c.debug
	*c = *NewAssetCache(fsys)
	c.debug = debug
}
