package skyapi

import (
	"encoding/json"
	"time"

	"skypress/domain/model"
)

const (
	collectionPost   = "app.bsky.feed.post"
	collectionRepost = "app.bsky.feed.repost"

	typePost             = "app.bsky.feed.post"
	typeRepost           = "app.bsky.feed.repost"
	typeEmbedImages      = "app.bsky.embed.images"
	typeEmbedVideo       = "app.bsky.embed.video"
	typeEmbedExternal    = "app.bsky.embed.external"
	typeEmbedRecord      = "app.bsky.embed.record"
	typeEmbedRecordMedia = "app.bsky.embed.recordWithMedia"
	typeSelfLabels       = "com.atproto.label.defs#selfLabels"
)

type recordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type replyRef struct {
	Root   recordRef `json:"root"`
	Parent recordRef `json:"parent"`
}

type aspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type imageItem struct {
	Image       json.RawMessage `json:"image"`
	Alt         string          `json:"alt"`
	AspectRatio *aspectRatio    `json:"aspectRatio,omitempty"`
}

type imagesEmbed struct {
	Type   string      `json:"$type"`
	Images []imageItem `json:"images"`
}

type videoEmbed struct {
	Type        string          `json:"$type"`
	Video       json.RawMessage `json:"video"`
	Alt         string          `json:"alt,omitempty"`
	AspectRatio *aspectRatio    `json:"aspectRatio,omitempty"`
}

type externalObject struct {
	URI         string          `json:"uri"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumb       json.RawMessage `json:"thumb,omitempty"`
}

type externalEmbed struct {
	Type     string         `json:"$type"`
	External externalObject `json:"external"`
}

type recordEmbed struct {
	Type   string    `json:"$type"`
	Record recordRef `json:"record"`
}

type recordWithMediaEmbed struct {
	Type   string          `json:"$type"`
	Record recordEmbed     `json:"record"`
	Media  json.RawMessage `json:"media"`
}

type selfLabel struct {
	Val string `json:"val"`
}

type selfLabels struct {
	Type   string      `json:"$type"`
	Values []selfLabel `json:"values"`
}

type postRecord struct {
	Type      string          `json:"$type"`
	Text      string          `json:"text"`
	CreatedAt string          `json:"createdAt"`
	Reply     *replyRef       `json:"reply,omitempty"`
	Embed     json.RawMessage `json:"embed,omitempty"`
	Labels    *selfLabels     `json:"labels,omitempty"`
	Langs     []string        `json:"langs,omitempty"`
}

type repostRecord struct {
	Type      string    `json:"$type"`
	Subject   recordRef `json:"subject"`
	CreatedAt string    `json:"createdAt"`
}

// buildEmbed renders the assembled attachment into the wire embed object.
// Quote plus media becomes a record-with-media embed.
func buildEmbed(a *model.Attachment) (json.RawMessage, error) {
	if a.Empty() {
		return nil, nil
	}

	var media json.RawMessage
	var err error
	switch {
	case len(a.Images) > 0:
		items := make([]imageItem, 0, len(a.Images))
		for _, img := range a.Images {
			it := imageItem{Image: json.RawMessage(img.Blob), Alt: img.Alt}
			if img.Width > 0 && img.Height > 0 {
				it.AspectRatio = &aspectRatio{Width: img.Width, Height: img.Height}
			}
			items = append(items, it)
		}
		media, err = json.Marshal(imagesEmbed{Type: typeEmbedImages, Images: items})
	case a.Video != nil:
		v := videoEmbed{Type: typeEmbedVideo, Video: json.RawMessage(a.Video.Blob), Alt: a.Video.Alt}
		if a.Video.Width > 0 && a.Video.Height > 0 {
			v.AspectRatio = &aspectRatio{Width: a.Video.Width, Height: a.Video.Height}
		}
		media, err = json.Marshal(v)
	case a.External != nil:
		media, err = json.Marshal(externalEmbed{
			Type: typeEmbedExternal,
			External: externalObject{
				URI:         a.External.URL,
				Title:       a.External.Title,
				Description: a.External.Description,
				Thumb:       json.RawMessage(a.External.Thumb),
			},
		})
	}
	if err != nil {
		return nil, err
	}

	if a.Quote == nil {
		return media, nil
	}
	quote := recordEmbed{Type: typeEmbedRecord, Record: recordRef{URI: a.Quote.URI, CID: a.Quote.CID}}
	if media == nil {
		return json.Marshal(quote)
	}
	return json.Marshal(recordWithMediaEmbed{Type: typeEmbedRecordMedia, Record: quote, Media: media})
}

func buildPostRecord(post *model.OutboundPost) (*postRecord, error) {
	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	rec := &postRecord{
		Type:      typePost,
		Text:      post.Text,
		CreatedAt: createdAt.Format(time.RFC3339),
		Langs:     post.Langs,
	}
	if post.Reply != nil {
		rec.Reply = &replyRef{
			Root:   recordRef{URI: post.Reply.Root.URI, CID: post.Reply.Root.CID},
			Parent: recordRef{URI: post.Reply.Parent.URI, CID: post.Reply.Parent.CID},
		}
	}
	if post.Attachment != nil {
		embed, err := buildEmbed(post.Attachment)
		if err != nil {
			return nil, err
		}
		rec.Embed = embed
	}
	if len(post.Labels) > 0 {
		labels := &selfLabels{Type: typeSelfLabels}
		for _, val := range post.Labels {
			labels.Values = append(labels.Values, selfLabel{Val: val})
		}
		rec.Labels = labels
	}
	return rec, nil
}
