package core

import (
	"fmt"

	"github.com/google/uuid"
)

// BlockType is the variant tag of a Block. The set is closed.
type BlockType string

const (
	BlockHeading1  BlockType = "heading-1"
	BlockHeading2  BlockType = "heading-2"
	BlockHeading3  BlockType = "heading-3"
	BlockParagraph BlockType = "paragraph"
	BlockImage     BlockType = "image"
)

// BlockTypes lists every variant in toolbar order.
var BlockTypes = []BlockType{
	BlockHeading1,
	BlockHeading2,
	BlockHeading3,
	BlockParagraph,
	BlockImage,
}

// DefaultPageTitle is the placeholder heading of a page that was never saved.
const DefaultPageTitle = "Untitled page"

type (
	// Block is a single unit of page content. Content is text for headings and
	// paragraphs and an image URL for image blocks.
	Block struct {
		ID      string    `json:"id" bson:"id"`
		Type    BlockType `json:"type" bson:"type"`
		Content string    `json:"content" bson:"content"`
	}

	// Document is the persisted, ordered block sequence of one page.
	Document struct {
		PageID string  `json:"-" bson:"_id"`
		Blocks []Block `json:"blocks" bson:"blocks"`
	}
)

// Valid reports whether t is one of the known variants.
func (t BlockType) Valid() bool {
	switch t {
	case BlockHeading1, BlockHeading2, BlockHeading3, BlockParagraph, BlockImage:
		return true
	}
	return false
}

// IsHeading reports whether t is one of the heading variants.
func (t BlockType) IsHeading() bool {
	switch t {
	case BlockHeading1, BlockHeading2, BlockHeading3:
		return true
	}
	return false
}

// ParseBlockType validates a wire value.
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown block type %q", ErrInvalidBlock, s)
	}
	return t, nil
}

// NewBlock creates an empty block of the given type with a fresh id.
func NewBlock(t BlockType) Block {
	return Block{
		ID:   uuid.NewString(),
		Type: t,
	}
}

// IsRemovable reports whether a block may be deleted from blocks.
// A page never drops below one block.
func IsRemovable(blocks []Block) bool {
	return len(blocks) != 1
}

// DefaultDocument is the working copy of a page that has no stored document.
func DefaultDocument(pageID string) *Document {
	b := NewBlock(BlockHeading1)
	b.Content = DefaultPageTitle
	return &Document{
		PageID: pageID,
		Blocks: []Block{b},
	}
}

// Validate checks the structural invariants of a stored document.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Blocks))
	for i, b := range d.Blocks {
		if b.ID == "" {
			return fmt.Errorf("%w: block %d has no id", ErrInvalidBlock, i)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("%w: block %s has unknown type %q", ErrInvalidBlock, b.ID, b.Type)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate block id %s", ErrInvalidBlock, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots of a working copy.
func (d *Document) Clone() *Document {
	blocks := make([]Block, len(d.Blocks))
	copy(blocks, d.Blocks)
	return &Document{PageID: d.PageID, Blocks: blocks}
}

// IndexOf returns the position of the block with the given id, or -1.
func IndexOf(blocks []Block, id string) int {
	for i := range blocks {
		if blocks[i].ID == id {
			return i
		}
	}
	return -1
}
