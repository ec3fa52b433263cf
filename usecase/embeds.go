package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/cache"
	"skypress/infrastructure/logger"
)

// ResolverConfig caps the embed scan and the remote blob size.
type ResolverConfig struct {
	MaxImages    int
	MaxBlobBytes int64
}

// EmbedResolver turns a post's ordered embed descriptors into the single
// outbound attachment, honoring the remote exclusivity rules: at most one of
// image-gallery/video/link-card, optionally combined with one quoted record.
type EmbedResolver struct {
	social  repository.ISocial
	media   repository.IMediaStore
	account repository.IAccount
	handles cache.IHandleCache
	http    *http.Client
	cfg     ResolverConfig
}

func NewEmbedResolver(
	social repository.ISocial,
	media repository.IMediaStore,
	account repository.IAccount,
	handles cache.IHandleCache,
	cfg ResolverConfig,
) *EmbedResolver {
	if cfg.MaxImages == 0 {
		cfg.MaxImages = 4
	}
	if cfg.MaxBlobBytes == 0 {
		cfg.MaxBlobBytes = 1_000_000
	}
	return &EmbedResolver{
		social:  social,
		media:   media,
		account: account,
		handles: handles,
		http:    &http.Client{Timeout: 20 * time.Second},
		cfg:     cfg,
	}
}

// Resolve processes descriptors in order. A media kind conflicting with the
// already-set primary kind is a record violation and fails the whole post; a
// quote reference that cannot be resolved is skipped instead.
func (r *EmbedResolver) Resolve(ctx context.Context, embeds []model.EmbedDescriptor, s *model.Session, accountID string) (*model.Attachment, error) {
	if len(embeds) == 0 {
		return nil, nil
	}
	// One extra slot tolerates a trailing quote record after a full gallery.
	limit := r.cfg.MaxImages + 1
	if len(embeds) < limit {
		limit = len(embeds)
	}

	att := &model.Attachment{}
	var primary model.EmbedKind

	for _, embed := range embeds[:limit] {
		if embed.Kind != model.EmbedRecord {
			if primary != "" && primary != embed.Kind && primary != model.EmbedRecord {
				return nil, &model.RecordViolationError{Have: primary, Got: embed.Kind}
			}
		}

		switch embed.Kind {
		case model.EmbedImage:
			if embed.Image == nil {
				return nil, errors.New("image embed missing descriptor")
			}
			if len(att.Images) >= r.cfg.MaxImages {
				logger.GetLogger().WithField("key", embed.Image.StorageKey).Warn("Image gallery full, skipping extra image")
				continue
			}
			img, err := r.resolveImage(ctx, embed.Image, s, accountID)
			if err != nil {
				return nil, err
			}
			att.Images = append(att.Images, *img)
			primary = model.EmbedImage

		case model.EmbedVideo:
			if embed.Video == nil {
				return nil, errors.New("video embed missing descriptor")
			}
			if att.Video != nil {
				logger.GetLogger().WithField("key", embed.Video.StorageKey).Warn("Video slot taken, skipping extra video")
				continue
			}
			video, err := r.resolveVideo(ctx, embed.Video, s, accountID)
			if err != nil {
				return nil, err
			}
			att.Video = video
			primary = model.EmbedVideo

		case model.EmbedLink:
			if embed.Link == nil {
				return nil, errors.New("link embed missing descriptor")
			}
			if att.External != nil {
				logger.GetLogger().WithField("url", embed.Link.URL).Warn("Link card slot taken, skipping extra link")
				continue
			}
			att.External = r.resolveLink(ctx, embed.Link, s)
			primary = model.EmbedLink

		case model.EmbedRecord:
			if embed.Record == nil || att.Quote != nil {
				continue
			}
			claimed := false
			if primary == "" {
				primary = model.EmbedRecord
				claimed = true
			}
			ref, err := r.resolveQuote(ctx, embed.Record.Permalink, s)
			if err != nil {
				// A failed quote reference is recoverable; revert the slot if
				// this step claimed it and move on.
				logger.GetLogger().
					WithField("permalink", embed.Record.Permalink).
					WithField("error", err).
					Warn("Quote record resolution failed, skipping")
				if claimed {
					primary = ""
				}
				continue
			}
			att.Quote = ref

		default:
			return nil, fmt.Errorf("unknown embed kind %q", embed.Kind)
		}
	}

	if att.Empty() {
		return nil, nil
	}
	return att, nil
}

func (r *EmbedResolver) resolveImage(ctx context.Context, desc *model.ImageDescriptor, s *model.Session, accountID string) (*model.UploadedImage, error) {
	data, err := r.media.Fetch(ctx, desc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("fetching image %s: %w", desc.StorageKey, err)
	}
	blob, err := r.upload(ctx, s, data, desc.MimeType, accountID)
	if err != nil {
		return nil, err
	}
	img := &model.UploadedImage{Blob: blob, Alt: desc.Alt}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}

func (r *EmbedResolver) resolveVideo(ctx context.Context, desc *model.VideoDescriptor, s *model.Session, accountID string) (*model.UploadedVideo, error) {
	data, err := r.media.Fetch(ctx, desc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("fetching video %s: %w", desc.StorageKey, err)
	}
	blob, err := r.upload(ctx, s, data, desc.MimeType, accountID)
	if err != nil {
		return nil, err
	}
	return &model.UploadedVideo{
		Blob:       blob,
		Alt:        desc.Alt,
		Width:      desc.Width,
		Height:     desc.Height,
		DurationMS: desc.DurationMS,
	}, nil
}

// resolveLink always returns a card. The thumbnail is best effort: a link
// card must not block posting just because its preview image failed.
func (r *EmbedResolver) resolveLink(ctx context.Context, desc *model.LinkDescriptor, s *model.Session) *model.ExternalCard {
	card := &model.ExternalCard{
		URL:         desc.URL,
		Title:       desc.Title,
		Description: desc.Description,
	}
	if desc.ThumbURL == "" {
		return card
	}

	data, mime, err := r.fetchThumb(ctx, desc.ThumbURL)
	if err != nil {
		logger.GetLogger().WithField("url", desc.ThumbURL).WithField("error", err).
			Debug("Thumbnail fetch failed, posting link card without preview")
		return card
	}
	if int64(len(data)) > r.cfg.MaxBlobBytes {
		data, mime, err = shrinkJPEG(data, r.cfg.MaxBlobBytes)
		if err != nil {
			logger.GetLogger().WithField("url", desc.ThumbURL).WithField("error", err).
				Debug("Thumbnail too large and could not be downsized, dropping")
			return card
		}
	}
	blob, err := r.social.UploadBlob(ctx, s, data, mime)
	if err != nil {
		logger.GetLogger().WithField("url", desc.ThumbURL).WithField("error", err).
			Debug("Thumbnail upload failed, posting link card without preview")
		return card
	}
	card.Thumb = blob
	return card
}

func (r *EmbedResolver) fetchThumb(ctx context.Context, thumbURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbURL, nil)
	if err != nil {
		return nil, "", err
	}
	res, err := r.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("thumbnail fetch returned %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}
	mime := res.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// resolveQuote parses a human-facing permalink, resolves the account segment
// to its stable identifier and fetches the referenced record's cid.
func (r *EmbedResolver) resolveQuote(ctx context.Context, permalink string, s *model.Session) (*model.RecordRef, error) {
	actor, collection, rkey, err := parsePermalink(permalink)
	if err != nil {
		return nil, err
	}

	did := actor
	if !strings.HasPrefix(actor, "did:") {
		if cached, ok := r.handles.Get(ctx, actor); ok {
			did = cached
		} else {
			did, err = r.social.ResolveHandle(ctx, s, actor)
			if err != nil {
				return nil, fmt.Errorf("resolving handle %s: %w", actor, err)
			}
			r.handles.Set(ctx, actor, did)
		}
	}

	cid, err := r.social.GetRecordCID(ctx, s, did, collection, rkey)
	if err != nil {
		return nil, fmt.Errorf("fetching quoted record: %w", err)
	}
	return &model.RecordRef{
		URI: fmt.Sprintf("at://%s/%s/%s", did, collection, rkey),
		CID: cid,
	}, nil
}

// parsePermalink understands profile permalinks of the form
// /profile/{actor}/post/{rkey}, /profile/{actor}/feed/{rkey} and
// /profile/{actor}/lists/{rkey}.
func parsePermalink(permalink string) (actor, collection, rkey string, err error) {
	u, err := url.Parse(permalink)
	if err != nil {
		return "", "", "", fmt.Errorf("malformed permalink %q: %w", permalink, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "profile" {
		return "", "", "", fmt.Errorf("unrecognized permalink %q", permalink)
	}
	actor = parts[1]
	rkey = parts[3]
	switch parts[2] {
	case "post":
		collection = "app.bsky.feed.post"
	case "feed":
		collection = "app.bsky.feed.generator"
	case "lists":
		collection = "app.bsky.graph.list"
	default:
		return "", "", "", fmt.Errorf("unrecognized record type %q in permalink", parts[2])
	}
	if actor == "" || rkey == "" {
		return "", "", "", fmt.Errorf("unrecognized permalink %q", permalink)
	}
	return actor, collection, rkey, nil
}

func (r *EmbedResolver) upload(ctx context.Context, s *model.Session, data []byte, mime, accountID string) (model.BlobRef, error) {
	blob, err := r.social.UploadBlob(ctx, s, data, mime)
	if err != nil {
		var re *model.RemoteError
		if errors.As(err, &re) && re.Status == model.StatusMediaTooLarge {
			logger.GetLogger().WithField("accountID", accountID).WithField("size", len(data)).
				Warn("Media over remote size limit, recording violation")
			if vErr := r.account.RecordViolation(ctx, accountID, model.StatusMediaTooLarge, re.Msg); vErr != nil {
				logger.GetLogger().WithField("error", vErr).Error("Failed to record violation")
			}
		}
		return nil, err
	}
	return blob, nil
}

// shrinkJPEG re-encodes an image at decreasing quality until it fits the
// limit. Returns an error if it never fits or the bytes do not decode.
func shrinkJPEG(data []byte, limit int64) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	for quality := 80; quality >= 20; quality -= 15 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		if int64(buf.Len()) <= limit {
			return buf.Bytes(), "image/jpeg", nil
		}
	}
	return nil, "", fmt.Errorf("image does not fit %d bytes after re-encoding", limit)
}
