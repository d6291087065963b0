package remote

import "ledgerchat/internal/model"

// The store's wire format encodes optional fields as 0/1-element
// arrays. That encoding stops here: everything past this adapter uses
// pointer fields.

type (
	wireMessage struct {
		ID             int64   `json:"id"`
		Author         string  `json:"author"`
		SenderIdentity string  `json:"sender_identity"`
		Text           string  `json:"text"`
		Timestamp      int64   `json:"timestamp"`
		ImageRef       []int64 `json:"image_ref"`
		ReplyTo        []int64 `json:"reply_to"`
	}

	wirePage struct {
		Messages   []wireMessage `json:"messages"`
		Total      int           `json:"total"`
		Page       int           `json:"page"`
		PageSize   int           `json:"page_size"`
		TotalPages int           `json:"total_pages"`
	}

	wireSendRequest struct {
		Author         string  `json:"author"`
		SenderIdentity string  `json:"sender_identity"`
		Text           string  `json:"text"`
		ImageRef       []int64 `json:"image_ref"`
		ReplyTo        []int64 `json:"reply_to"`
	}
)

func fromWire(w wireMessage) model.Message {
	return model.Message{
		ID:             w.ID,
		Author:         w.Author,
		SenderIdentity: w.SenderIdentity,
		Text:           w.Text,
		Timestamp:      w.Timestamp,
		ImageRef:       firstOrNil(w.ImageRef),
		ReplyTo:        firstOrNil(w.ReplyTo),
	}
}

func fromWirePage(w wirePage) model.Page {
	p := model.Page{
		Total:      w.Total,
		Page:       w.Page,
		PageSize:   w.PageSize,
		TotalPages: w.TotalPages,
		Messages:   make([]model.Message, 0, len(w.Messages)),
	}
	for _, m := range w.Messages {
		p.Messages = append(p.Messages, fromWire(m))
	}
	return p
}

func firstOrNil(values []int64) *int64 {
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func asArray(v *int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return []int64{*v}
}
