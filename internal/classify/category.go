package classify

import "fmt"

// Category identifies one of the fixed inbox categories. The set is
// closed: values other than the defined constants are rejected by
// ParseCategory and reported as invalid by Valid.
type Category string

const (
	CategoryWork        Category = "work"
	CategoryPersonal    Category = "personal"
	CategorySocial      Category = "social"
	CategoryPromotions  Category = "promotions"
	CategoryUpdates     Category = "updates"
	CategoryFinance     Category = "finance"
	CategoryNewsletters Category = "newsletters"

	// CategoryPrimary is the catch-all inbox bucket. It carries no
	// exemplars and is never scored against message text; messages land
	// here only through the low-confidence fallback.
	CategoryPrimary Category = "primary"
)

// taxonomy is the canonical category order. Scoring iterates it in
// this order, which makes tie-breaking deterministic: on equal
// similarity the earlier category wins.
var taxonomy = []Category{
	CategoryWork,
	CategoryPersonal,
	CategorySocial,
	CategoryPromotions,
	CategoryUpdates,
	CategoryFinance,
	CategoryNewsletters,
}

// ScoredCategories returns the categories that carry exemplars, in
// canonical order. The returned slice is a copy.
func ScoredCategories() []Category {
	out := make([]Category, len(taxonomy))
	copy(out, taxonomy)
	return out
}

// AllCategories returns every category including the primary fallback,
// in canonical order with primary last.
func AllCategories() []Category {
	return append(ScoredCategories(), CategoryPrimary)
}

// ParseCategory converts a string to a Category, rejecting anything
// outside the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategorySocial, CategoryPromotions,
		CategoryUpdates, CategoryFinance, CategoryNewsletters, CategoryPrimary:
		return true
	}
	return false
}

// Scored reports whether c participates in similarity scoring.
// Only primary does not.
func (c Category) Scored() bool {
	return c.Valid() && c != CategoryPrimary
}

// categoryColors maps each category to its display color. These are
// the hex values the web and mobile clients render category chips
// with; they are advisory metadata, not used by the classifier.
var categoryColors = map[Category]string{
	CategoryPrimary:     "#3B82F6",
	CategoryWork:        "#EF4444",
	CategoryPersonal:    "#10B981",
	CategorySocial:      "#8B5CF6",
	CategoryPromotions:  "#F59E0B",
	CategoryUpdates:     "#0891B2",
	CategoryFinance:     "#059669",
	CategoryNewsletters: "#7C3AED",
}

// Color returns the display color for the category as a hex string,
// or an empty string for invalid categories.
func (c Category) Color() string {
	return categoryColors[c]
}

// categoryDescriptions holds the one-line summary shown next to each
// category in client UIs and tool listings.
var categoryDescriptions = map[Category]string{
	CategoryPrimary:     "Primary inbox",
	CategoryWork:        "Work and business emails",
	CategoryPersonal:    "Personal emails",
	CategorySocial:      "Social media notifications",
	CategoryPromotions:  "Marketing and promotional emails",
	CategoryUpdates:     "Updates and notifications",
	CategoryFinance:     "Financial and banking emails",
	CategoryNewsletters: "Newsletter subscriptions",
}

// Description returns a short human-readable summary of the category.
func (c Category) Description() string {
	return categoryDescriptions[c]
}

// Exemplars returns the hand-written descriptions that define the
// category's semantic neighborhood. Primary and invalid categories
// have none. The returned slice is a copy.
func (c Category) Exemplars() []string {
	src := categoryExemplars[c]
	if len(src) == 0 {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// categoryExemplars holds the exemplar descriptions per category.
// Changing these changes classification behavior for every user, so
// they are deliberately compiled in rather than configurable.
var categoryExemplars = map[Category][]string{
	CategoryWork: {
		"Professional work email about meetings, projects, deadlines",
		"Office communication regarding tasks, assignments, reports",
		"Business correspondence with colleagues and managers",
		"Job-related emails about interviews, recruitment, career",
		"Team collaboration on Slack, Jira, GitHub, pull requests",
		"Corporate announcements and company updates",
		"Calendar invites and meeting schedules",
	},
	CategoryPersonal: {
		"Personal email from friends and family",
		"Casual conversation about life, plans, gatherings",
		"Birthday wishes, congratulations, personal news",
		"Vacation plans, trip discussions, photo sharing",
		"Catching up with old friends, reunion planning",
		"Personal matters and family discussions",
	},
	CategorySocial: {
		"Social media notifications from Facebook, Twitter, LinkedIn",
		"Someone liked, commented, or shared your post",
		"New follower or friend request notification",
		"Social network activity and engagement alerts",
		"Instagram, TikTok, YouTube notifications",
		"Connection requests and social updates",
	},
	CategoryPromotions: {
		"Marketing email with sales, discounts, special offers",
		"Promotional content about deals and limited time offers",
		"E-commerce notifications about new products",
		"Coupon codes, vouchers, and promotional campaigns",
		"Black Friday, holiday sales, clearance events",
		"Shopping recommendations and product suggestions",
	},
	CategoryUpdates: {
		"Account security alerts and password notifications",
		"Service updates and system notifications",
		"Order confirmation, shipping, and delivery updates",
		"App updates and software notifications",
		"Account verification and login alerts",
		"Subscription and service status updates",
	},
	CategoryFinance: {
		"Bank statement and financial transaction alerts",
		"Payment confirmation, invoice, and billing",
		"Credit card and banking notifications",
		"Investment updates and financial reports",
		"Tax documents and financial statements",
		"Money transfer and payment receipts",
	},
	CategoryNewsletters: {
		"Newsletter digest and content roundup",
		"Weekly or daily news briefing",
		"Blog updates and article recommendations",
		"Industry news and curated content",
		"Substack, Medium, and publication updates",
		"Educational content and learning resources",
	},
}
