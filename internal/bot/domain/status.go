package domain

import (
	"context"
)

// StatusUnknown is the fallback category of users nobody has moderated yet.
const StatusUnknown = "unknown"

type StatusCategory struct {
	Code        string
	Title       string
	Description string
	Photo       string
}

// StatusPatch is a partial update of a category. Nil or empty fields
// leave the current value untouched.
type StatusPatch struct {
	Title       *string
	Description *string
	Photo       *string
}

func (p StatusPatch) Apply(c StatusCategory) StatusCategory {
	if p.Title != nil && *p.Title != "" {
		c.Title = *p.Title
	}
	if p.Description != nil && *p.Description != "" {
		c.Description = *p.Description
	}
	if p.Photo != nil && *p.Photo != "" {
		c.Photo = *p.Photo
	}
	return c
}

func UnknownCategory() StatusCategory {
	return StatusCategory{
		Code:        StatusUnknown,
		Title:       "❓ Unknown",
		Description: "No data, be careful.",
		Photo:       "https://i.imgur.com/4rKBePk.png",
	}
}

func DefaultStatuses() map[string]StatusCategory {
	defaults := []StatusCategory{
		{
			Code:        "team",
			Title:       "⚙ Bot team",
			Description: "Member of the bot team.",
			Photo:       "https://i.imgur.com/Qz9s5rM.png",
		},
		{
			Code:        "guarantor",
			Title:       "🛡 Guarantor",
			Description: "Recommended guarantor.",
			Photo:       "https://i.imgur.com/ev7tnBe.png",
		},
		{
			Code:        "verified",
			Title:       "🟢 Verified",
			Description: "User with a confirmed reputation.",
			Photo:       "https://i.imgur.com/6p3ibEd.png",
		},
		UnknownCategory(),
		{
			Code:        "doubtful",
			Title:       "🟠 Doubtful",
			Description: "There are doubts about this user.",
			Photo:       "https://i.imgur.com/VfU8XDW.png",
		},
		{
			Code:        "scammer",
			Title:       "🔴 Scammer",
			Description: "Fraud complaints were recorded.",
			Photo:       "https://i.imgur.com/5t49PxD.png",
		},
	}
	out := make(map[string]StatusCategory, len(defaults))
	for _, c := range defaults {
		out[c.Code] = c
	}
	return out
}

type StatusRepository interface {
	List(ctx context.Context) (map[string]StatusCategory, error)
	Get(ctx context.Context, code string) (StatusCategory, error)
	// Upsert creates the category if absent, otherwise merges patch into it.
	Upsert(ctx context.Context, code string, patch StatusPatch) (StatusCategory, error)
	// Update merges patch into an existing category.
	Update(ctx context.Context, code string, patch StatusPatch) (StatusCategory, error)
	Delete(ctx context.Context, code string) error
	ResolveTitle(ctx context.Context, code string) (string, error)
}
