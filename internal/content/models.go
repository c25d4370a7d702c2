package content

import (
	"encoding/json"
	"time"
)

// Kind names a content resource type and doubles as its collection name.
type Kind string

const (
	KindBlog         Kind = "blog"
	KindAnnouncement Kind = "announcement"
	KindService      Kind = "service"
)

// Fields holds the text and list values of one language. A key that is
// present with an empty value is an explicit clear; an absent key was never set.
type Fields struct {
	Text  map[string]string   `bson:"text,omitempty"`
	Lists map[string][]string `bson:"lists,omitempty"`
}

// Has reports whether name is set, empty or not.
func (f Fields) Has(name string) bool {
	if _, ok := f.Text[name]; ok {
		return true
	}
	_, ok := f.Lists[name]
	return ok
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	out := Fields{}
	if f.Text != nil {
		out.Text = make(map[string]string, len(f.Text))
		for k, v := range f.Text {
			out.Text[k] = v
		}
	}
	if f.Lists != nil {
		out.Lists = make(map[string][]string, len(f.Lists))
		for k, v := range f.Lists {
			out.Lists[k] = append([]string{}, v...)
		}
	}
	return out
}

// Resource is the stored shape shared by blogs, announcements and services.
type Resource struct {
	ID         string    `bson:"_id"`
	Kind       Kind      `bson:"kind"`
	Slug       string    `bson:"slug"`
	Primary    Fields    `bson:"primary"`
	Secondary  Fields    `bson:"secondary"`
	Images     []string  `bson:"images"`
	Order      int       `bson:"order"`
	IsActive   bool      `bson:"isActive"`
	IsFeatured bool      `bson:"isFeatured"`
	CreatedBy  string    `bson:"createdBy,omitempty"`
	UpdatedBy  string    `bson:"updatedBy,omitempty"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// Clone returns a deep copy; repositories hand out copies so callers never
// mutate stored state.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.Primary = r.Primary.Clone()
	c.Secondary = r.Secondary.Clone()
	c.Images = append([]string{}, r.Images...)
	return &c
}

// Text returns the primary text value of name.
func (r *Resource) Text(name string) string { return r.Primary.Text[name] }

// MarshalJSON flattens the localized fields onto the wire names clients use
// (title / titleEn, tags / tagsEn).
func (r *Resource) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":         r.ID,
		"slug":       r.Slug,
		"images":     nonNil(r.Images),
		"isActive":   r.IsActive,
		"isFeatured": r.IsFeatured,
		"createdAt":  r.CreatedAt,
		"updatedAt":  r.UpdatedAt,
	}
	if r.CreatedBy != "" {
		out["createdBy"] = r.CreatedBy
	}
	if r.UpdatedBy != "" {
		out["updatedBy"] = r.UpdatedBy
	}
	d, ok := Lookup(r.Kind)
	if ok {
		if d.Ordered {
			out["order"] = r.Order
		}
		for k, v := range Flatten(d.Fields, r.Primary, r.Secondary) {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Flatten renders primary and secondary values under their wire names.
// Primary keys are always emitted; secondary keys only when set.
func Flatten(specs []FieldSpec, primary, secondary Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(specs)*2)
	for _, f := range specs {
		switch f.Type {
		case ListField:
			out[f.Name] = nonNil(primary.Lists[f.Name])
			if f.Localized {
				if v, ok := secondary.Lists[f.Name]; ok {
					out[f.WireSecondary()] = nonNil(v)
				}
			}
		default:
			out[f.Name] = primary.Text[f.Name]
			if f.Localized {
				if v, ok := secondary.Text[f.Name]; ok {
					out[f.WireSecondary()] = v
				}
			}
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// Actor is the authenticated editor performing a write, passed explicitly
// from the request scope.
type Actor struct {
	ID    string
	Email string
}

// Command is the typed result of decoding a create or update request.
// Presence in the maps means "sent"; nil pointers mean "not sent".
type Command struct {
	Primary   Fields
	Secondary Fields
	Slug      *string
	// ExistingImages nil means the client did not send the keep list.
	ExistingImages []string
	IsActive       *bool
	IsFeatured     *bool
	Order          *int
}

// Query is the list filter.
type Query struct {
	IsActive *bool
	Category string
	Tag      string
	Search   string
	Limit    int
	Skip     int
}

// Page is a list result.
type Page struct {
	Data  []*Resource `json:"data"`
	Total int64       `json:"total"`
	Limit int         `json:"limit"`
	Skip  int         `json:"skip"`
}
