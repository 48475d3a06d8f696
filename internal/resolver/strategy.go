package resolver

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"instantsaver/internal/selector"
	"instantsaver/internal/source"
)

// Strategy is one stage of the fallback chain. Run returns None to pass the
// reference to the next stage, optionally with the error that caused it.
// Returning ErrNotFound stops the chain.
type Strategy struct {
	Name    string
	Applies func(ref source.Reference) bool
	Run     func(ctx context.Context, ref source.Reference, opts Options) (mo.Option[Result], error)
}

const (
	messageNoVideo   = "no video preview available"
	messageNoPreview = "preview unavailable for this video, download still works"
)

func isProfile(ref source.Reference) bool { return ref.IsProfile() }
func isContent(ref source.Reference) bool { return !ref.IsProfile() }

func (r *Resolver) profilePictureStrategy() Strategy {
	return Strategy{
		Name: "profile-picture",
		Applies: func(ref source.Reference) bool {
			return isProfile(ref) && ref.Platform == source.Instagram
		},
		Run: func(ctx context.Context, ref source.Reference, _ Options) (mo.Option[Result], error) {
			if r.profiles == nil {
				return mo.None[Result](), fmt.Errorf("%w: profile lookups disabled", ErrNotFound)
			}
			picURL, err := r.profiles.Fetch(ctx, ref.Username)
			if err != nil {
				return mo.None[Result](), fmt.Errorf("%w: %v", ErrNotFound, err)
			}
			return some(Result{
				Type:        selector.TypeImage,
				CanPreview:  true,
				PreviewURL:  lo.ToPtr(picURL),
				DownloadURL: DownloadLink(r.downloadPath, ref, string(selector.TypeImage), 0),
				Username:    ref.Username,
				Title:       ref.Username,
			})
		},
	}
}

func (r *Resolver) directURLStrategy() Strategy {
	return Strategy{
		Name:    "direct-url",
		Applies: isContent,
		Run: func(ctx context.Context, ref source.Reference, opts Options) (mo.Option[Result], error) {
			d, err := r.extractor.DirectURL(ctx, ref, opts.HeightCeiling)
			if err != nil {
				return mo.None[Result](), err
			}
			return some(Result{
				Type:        selector.TypeVideo,
				CanPreview:  true,
				PreviewURL:  lo.ToPtr(d.URL),
				DownloadURL: DownloadLink(r.downloadPath, ref, string(selector.TypeVideo), opts.HeightCeiling),
				Username:    uploaderOrUnknown(d.Uploader),
				Title:       lo.CoalesceOrEmpty(d.Title, ref.Label()),
			})
		},
	}
}

func (r *Resolver) manifestStrategy() Strategy {
	return Strategy{
		Name:    "manifest",
		Applies: isContent,
		Run: func(ctx context.Context, ref source.Reference, opts Options) (mo.Option[Result], error) {
			m, err := r.extractor.FetchManifest(ctx, ref)
			if err != nil {
				return mo.None[Result](), err
			}

			pick := r.selector.Select(m, opts.HeightCeiling)
			res := Result{
				Type:       pick.Type,
				CanPreview: pick.CanPreview,
				Username:   uploaderOrUnknown(m.Uploader),
				Title:      lo.CoalesceOrEmpty(m.Title, ref.Label()),
			}
			if pick.URL != "" {
				res.PreviewURL = lo.ToPtr(pick.URL)
			}

			switch pick.Type {
			case selector.TypeVideo:
				res.DownloadURL = DownloadLink(r.downloadPath, ref, string(selector.TypeVideo), opts.HeightCeiling)
				if !pick.CanPreview {
					res.Message = messageNoPreview
				}
			case selector.TypeImage:
				res.DownloadURL = DownloadLink(r.downloadPath, ref, string(selector.TypeImage), 0)
				res.Message = messageNoVideo
			default:
				return mo.None[Result](), fmt.Errorf("%w: manifest has no usable media", ErrNotFound)
			}
			return some(res)
		},
	}
}
