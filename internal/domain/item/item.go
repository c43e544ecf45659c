// Package item defines the core domain entities for detainee property and
// facility-issued items. This package is PURE and must NOT import any
// infrastructure packages.
package item

// ItemType represents the kind of item.
type ItemType string

const (
	ItemShiv      ItemType = "SHIV"       // Contraband, improvised weapon
	ItemNarcotics ItemType = "NARCOTICS"  // Contraband
	ItemPhone     ItemType = "PHONE"      // Contraband inside the facility
	ItemCash      ItemType = "CASH"       // Confiscated on long sentences, returned at release
	ItemKeepsake  ItemType = "KEEPSAKE"   // Personal effect, stored during incarceration
	ItemUniform   ItemType = "UNIFORM"    // Facility-issued
	ItemBedroll   ItemType = "BEDROLL"    // Facility-issued
	ItemMealTray  ItemType = "MEAL_TRAY"  // Facility-issued
)

// ItemStack represents a quantity of a specific item type.
type ItemStack struct {
	Type     ItemType `json:"type"`
	Quantity int      `json:"quantity"`
}

// ItemDefinition provides metadata about an item type.
type ItemDefinition struct {
	Name        string
	Description string
	Contraband  bool // A positive parole search on this item records a violation
	Storable    bool // Confiscated at booking drop-off and returned at release
	Issued      bool // Handed out at booking pickup
}

// Registry contains all known items and their handling rules.
var Registry = map[ItemType]ItemDefinition{
	ItemShiv: {
		Name:        "Shiv",
		Description: "Sharpened scrap. Seized on sight, never returned.",
		Contraband:  true,
	},
	ItemNarcotics: {
		Name:        "Narcotics",
		Description: "Controlled substances. Seized on sight, never returned.",
		Contraband:  true,
	},
	ItemPhone: {
		Name:        "Phone",
		Description: "Personal phone. Stored during incarceration.",
		Contraband:  true,
		Storable:    true,
	},
	ItemCash: {
		Name:        "Cash",
		Description: "Pocket money. Stored during incarceration.",
		Storable:    true,
	},
	ItemKeepsake: {
		Name:        "Keepsake",
		Description: "Personal effect with no custody concern.",
		Storable:    true,
	},
	ItemUniform: {
		Name:        "Facility Uniform",
		Description: "Issued at intake, surrendered at release.",
		Issued:      true,
	},
	ItemBedroll: {
		Name:        "Bedroll",
		Description: "Issued at intake.",
		Issued:      true,
	},
	ItemMealTray: {
		Name:        "Meal Tray",
		Description: "Issued at meal windows.",
		Issued:      true,
	},
}

// GetItem returns the definition for an item type.
func GetItem(t ItemType) (ItemDefinition, bool) {
	def, ok := Registry[t]
	return def, ok
}

// IsContraband reports whether carrying this item records a parole violation.
func IsContraband(t ItemType) bool {
	def, ok := Registry[t]
	return ok && def.Contraband
}
