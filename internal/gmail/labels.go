package gmail

import (
	"fmt"
	"sync"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/gokturkhatay/smartinbox/internal/classify"
)

// LabelPrefix is the nesting prefix for category labels, producing names
// like "SmartInbox/work"
const LabelPrefix = "SmartInbox/"

// labelTextColor is the text color for all category labels
const labelTextColor = "#ffffff"

// gmailLabelColors maps each category to a label background color. Gmail
// accepts label colors only from a fixed palette, so these are the closest
// allowed values to the category display colors.
var gmailLabelColors = map[classify.Category]string{
	classify.CategoryPrimary:     "#4a86e8",
	classify.CategoryWork:        "#fb4c2f",
	classify.CategoryPersonal:    "#16a766",
	classify.CategorySocial:      "#a479e2",
	classify.CategoryPromotions:  "#ffad47",
	classify.CategoryUpdates:     "#2da2bb",
	classify.CategoryFinance:     "#076239",
	classify.CategoryNewsletters: "#8e63ce",
}

// CategoryLabelName returns the Gmail label name for a category
func CategoryLabelName(c classify.Category) string {
	return LabelPrefix + c.String()
}

// labelCache caches the mapping from SmartInbox label name to Gmail label
// ID so repeated label applications don't re-list labels
type labelCache struct {
	mu  sync.Mutex
	ids map[string]string
}

// EnsureCategoryLabel makes sure the Gmail label for the given category
// exists and returns its ID
func (c *Client) EnsureCategoryLabel(category classify.Category) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("unknown category %q", category)
	}

	if err := c.loadLabelIDs(); err != nil {
		return "", err
	}

	name := CategoryLabelName(category)

	c.labels.mu.Lock()
	id, ok := c.labels.ids[name]
	c.labels.mu.Unlock()
	if ok {
		return id, nil
	}

	label, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
		Color: &gmail.LabelColor{
			BackgroundColor: gmailLabelColors[category],
			TextColor:       labelTextColor,
		},
	}).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}

	c.labels.mu.Lock()
	c.labels.ids[name] = label.Id
	c.labels.mu.Unlock()

	return label.Id, nil
}

// ApplyCategoryLabel attaches the label for the chosen category to a
// message and removes any other SmartInbox category labels it carries.
// Removing a label the message doesn't have is a no-op on the Gmail side.
func (c *Client) ApplyCategoryLabel(messageID string, category classify.Category) error {
	addID, err := c.EnsureCategoryLabel(category)
	if err != nil {
		return err
	}

	var removeIDs []string
	c.labels.mu.Lock()
	for _, other := range classify.AllCategories() {
		if other == category {
			continue
		}
		if id, ok := c.labels.ids[CategoryLabelName(other)]; ok {
			removeIDs = append(removeIDs, id)
		}
	}
	c.labels.mu.Unlock()

	_, err = c.svc.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{addID},
		RemoveLabelIds: removeIDs,
	}).Do()
	if err != nil {
		return fmt.Errorf("failed to label message %s: %w", messageID, err)
	}
	return nil
}

// loadLabelIDs populates the label cache from the Gmail label list once
func (c *Client) loadLabelIDs() error {
	c.labels.mu.Lock()
	defer c.labels.mu.Unlock()

	if c.labels.ids != nil {
		return nil
	}

	res, err := c.svc.Labels.List("me").Do()
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}

	c.labels.ids = make(map[string]string)
	for _, l := range res.Labels {
		c.labels.ids[l.Name] = l.Id
	}
	return nil
}
