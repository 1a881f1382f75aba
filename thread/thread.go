// Package thread assembles a post thread around a focal post: its parent
// chain up to a height, and its replies down to a depth.
package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bluesky-social/feedview/hydrator"
	"github.com/bluesky-social/feedview/views"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("thread")

// ErrNotFound is returned when the focal post does not exist or is hidden
// from the viewer by a block. The two cases are deliberately the same.
var ErrNotFound = errors.New("post not found")

const (
	MaxDepth        = 10
	MaxParentHeight = 80

	DefaultDepth        = 6
	DefaultParentHeight = 80
)

type Composer struct {
	store Store
	hyd   *hydrator.Hydrator

	log *slog.Logger
}

func NewComposer(store Store, hyd *hydrator.Hydrator, log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default().With("system", "thread")
	}
	return &Composer{store: store, hyd: hyd, log: log}
}

// GetThread returns the thread around uri as seen by requester. depth and
// parentHeight are clamped to [0, MaxDepth] and [0, MaxParentHeight].
func (c *Composer) GetThread(ctx context.Context, requester, uri string, depth, parentHeight int) (*views.ThreadNode, error) {
	ctx, span := tracer.Start(ctx, "GetThread")
	defer span.End()

	depth = clamp(depth, MaxDepth)
	parentHeight = clamp(parentHeight, MaxParentHeight)
	span.SetAttributes(
		attribute.String("uri", uri),
		attribute.Int("depth", depth),
		attribute.Int("parentHeight", parentHeight),
	)

	var ancestors, descendants []string
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		ancestors, err = c.store.Ancestors(ectx, uri, parentHeight)
		return err
	})
	eg.Go(func() error {
		var err error
		descendants, err = c.store.Descendants(ectx, uri, depth)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("loading thread hierarchy: %w", err)
	}

	uris := make([]string, 0, 1+len(ancestors)+len(descendants))
	uris = append(uris, uri)
	uris = append(uris, ancestors...)
	uris = append(uris, descendants...)

	st, err := c.hyd.Hydrate(ctx, uris, requester)
	if err != nil {
		return nil, err
	}

	focal := hydrator.ComposePostView(uri, st)
	if focal.IsNotFound() || focal.IsBlocked() {
		return nil, ErrNotFound
	}

	b := newBuilder(st)
	root := &views.ThreadNode{Post: focal}
	if parent := st.Posts[uri].ReplyParent; parent != "" && parentHeight > 0 {
		root.Parent = b.parent(parent, parentHeight).render()
	}
	root.Replies = b.replies(uri, depth)

	c.log.Debug("composed thread", "uri", uri, "ancestors", len(ancestors), "descendants", len(descendants))
	return root, nil
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

type builder struct {
	st       *hydrator.State
	children map[string][]*hydrator.PostInfo
}

func newBuilder(st *hydrator.State) *builder {
	children := make(map[string][]*hydrator.PostInfo)
	for _, pi := range st.Posts {
		if pi.ReplyParent != "" {
			children[pi.ReplyParent] = append(children[pi.ReplyParent], pi)
		}
	}
	for _, kids := range children {
		sort.Slice(kids, func(i, j int) bool {
			if kids[i].SortAt != kids[j].SortAt {
				return kids[i].SortAt < kids[j].SortAt
			}
			return kids[i].Uri < kids[j].Uri
		})
	}
	return &builder{st: st, children: children}
}

// parentNode is a step of the parent chain before rendering.
type parentNode interface {
	render() *views.ThreadNode
}

// parentNotFound is a parent that was referenced but did not hydrate.
type parentNotFound struct {
	uri string
}

func (p parentNotFound) render() *views.ThreadNode {
	return &views.ThreadNode{Post: views.NewNotFound(p.uri)}
}

type parentFound struct {
	node *views.ThreadNode
}

func (p parentFound) render() *views.ThreadNode {
	return p.node
}

// parent walks up from uri for at most height steps. A blocked parent ends
// the chain.
func (b *builder) parent(uri string, height int) parentNode {
	res := hydrator.ComposePostView(uri, b.st)
	if res.IsNotFound() {
		return parentNotFound{uri: uri}
	}

	node := &views.ThreadNode{Post: res}
	if res.IsBlocked() {
		return parentFound{node: node}
	}

	if next := b.st.Posts[uri].ReplyParent; next != "" && height > 1 {
		node.Parent = b.parent(next, height-1).render()
	}
	return parentFound{node: node}
}

// replies walks down from uri for at most depth levels, oldest first.
// Branches that don't hydrate are dropped; blocked replies are leaves.
func (b *builder) replies(uri string, depth int) []*views.ThreadNode {
	out := []*views.ThreadNode{}
	if depth <= 0 {
		return out
	}

	for _, child := range b.children[uri] {
		res := hydrator.ComposePostView(child.Uri, b.st)
		if res.IsNotFound() {
			continue
		}

		node := &views.ThreadNode{Post: res}
		if !res.IsBlocked() {
			node.Replies = b.replies(child.Uri, depth-1)
		}
		out = append(out, node)
	}
	return out
}
