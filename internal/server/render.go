package server

import "context"

// Renderer formats the long-form companion documents before they go out
// over HTTP. Rendering is owned by an external layer; this package only
// calls it and maps failures to a gateway error.
type Renderer interface {
	Render(ctx context.Context, markdown string) (string, error)
}

// PassthroughRenderer returns the source text unchanged. It is the default
// when no rendering pipeline is wired in.
type PassthroughRenderer struct{}

// Render implements Renderer.
func (PassthroughRenderer) Render(_ context.Context, markdown string) (string, error) {
	return markdown, nil
}
