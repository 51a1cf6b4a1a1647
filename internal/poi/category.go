package poi

import (
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/foodmap-cli/pkg/overpass"
)

// Category keys of the default catalog.
const (
	KeyStores      = "stores"
	KeyFastFood    = "fast_food"
	KeyRestaurants = "restaurants"
)

// Category is one toggleable map layer and the Overpass query that fills it.
type Category struct {
	Key          string
	Label        string
	Color        string // awesome-markers colour name
	Icon         string // Font Awesome icon name without the fa- prefix
	FallbackName string // popup name for records without a name tag
	Filters      []overpass.Filter
	Kinds        []overpass.Kind
}

// keyPattern limits keys to characters safe in file names and HTML ids.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func bothKinds() []overpass.Kind {
	return []overpass.Kind{overpass.KindNode, overpass.KindWay}
}

// DefaultCategories returns the food stores, fast food and restaurant layers.
func DefaultCategories() []Category {
	return []Category{
		{
			Key:          KeyStores,
			Label:        "Food Stores",
			Color:        "blue",
			Icon:         "shopping-cart",
			FallbackName: "Unknown store",
			Filters: []overpass.Filter{
				{Key: "shop", Value: "supermarket"},
				{Key: "shop", Value: "convenience"},
			},
			Kinds: bothKinds(),
		},
		{
			Key:          KeyFastFood,
			Label:        "Fast Food",
			Color:        "orange",
			Icon:         "burger",
			FallbackName: "Unknown fast food",
			Filters:      []overpass.Filter{{Key: "amenity", Value: "fast_food"}},
			Kinds:        bothKinds(),
		},
		{
			Key:          KeyRestaurants,
			Label:        "Restaurants",
			Color:        "green",
			Icon:         "utensils",
			FallbackName: "Unknown restaurant",
			Filters:      []overpass.Filter{{Key: "amenity", Value: "restaurant"}},
			Kinds:        bothKinds(),
		},
	}
}

// categoryFile is the YAML layout of a categories override file.
type categoryFile struct {
	Categories []categoryEntry `yaml:"categories"`
}

type categoryEntry struct {
	Key          string            `yaml:"key"`
	Label        string            `yaml:"label"`
	Color        string            `yaml:"color"`
	Icon         string            `yaml:"icon"`
	FallbackName string            `yaml:"fallback_name"`
	Filters      []overpass.Filter `yaml:"filters"`
	Kinds        []string          `yaml:"kinds"`
}

// LoadCategories returns the default catalog with the overrides in path
// applied. An entry whose key matches a default replaces only the fields it
// sets; other keys add new layers. An empty path returns the defaults.
func LoadCategories(path string) ([]Category, error) {
	if path == "" {
		return DefaultCategories(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "poi: read categories file %s", path)
	}
	return ParseCategories(data)
}

// ParseCategories applies YAML overrides to the default catalog.
func ParseCategories(data []byte) ([]Category, error) {
	var file categoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "poi: parse categories")
	}

	cats := DefaultCategories()
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		index[c.Key] = i
	}

	for _, e := range file.Categories {
		if e.Key == "" {
			return nil, eris.New("poi: category entry without key")
		}
		kinds := make([]overpass.Kind, 0, len(e.Kinds))
		for _, s := range e.Kinds {
			k, err := overpass.ParseKind(s)
			if err != nil {
				return nil, eris.Wrapf(err, "poi: category %s", e.Key)
			}
			kinds = append(kinds, k)
		}

		i, ok := index[e.Key]
		if !ok {
			cats = append(cats, Category{Key: e.Key, Kinds: bothKinds(), Color: "cadetblue", Icon: "location-dot", FallbackName: "Unknown"})
			i = len(cats) - 1
			index[e.Key] = i
		}
		c := &cats[i]
		if e.Label != "" {
			c.Label = e.Label
		}
		if e.Color != "" {
			c.Color = e.Color
		}
		if e.Icon != "" {
			c.Icon = e.Icon
		}
		if e.FallbackName != "" {
			c.FallbackName = e.FallbackName
		}
		if len(e.Filters) > 0 {
			c.Filters = e.Filters
		}
		if len(kinds) > 0 {
			c.Kinds = kinds
		}
	}

	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return cats, nil
}

// Validate checks that the category can be queried and rendered.
func (c Category) Validate() error {
	if !keyPattern.MatchString(c.Key) {
		return eris.Errorf("poi: invalid category key %q: use letters, digits, _ or -", c.Key)
	}
	if c.Label == "" {
		return eris.Errorf("poi: category %s has no label", c.Key)
	}
	if len(c.Filters) == 0 {
		return eris.Errorf("poi: category %s has no filters", c.Key)
	}
	for _, f := range c.Filters {
		if f.Key == "" {
			return eris.Errorf("poi: category %s has a filter without key", c.Key)
		}
	}
	if len(c.Kinds) == 0 {
		return eris.Errorf("poi: category %s has no geometry kinds", c.Key)
	}
	return nil
}

// DisplayName returns the record name, or the category fallback.
func (c Category) DisplayName(r Record) string {
	if name := r.Get("name"); name != "" {
		return name
	}
	return c.FallbackName
}
