package categories

import "github.com/flashlearn/backend/internal/models"

// Icon names the glyph the client renders next to a category.
type Icon string

const (
	IconCode       Icon = "code"
	IconGlobe      Icon = "globe"
	IconAtom       Icon = "atom"
	IconServer     Icon = "server"
	IconDatabase   Icon = "database"
	IconContainer  Icon = "container"
	IconCloud      Icon = "cloud"
	IconSmartphone Icon = "smartphone"
	IconBrain      Icon = "brain"
	IconShield     Icon = "shield"
	IconCPU        Icon = "cpu"
)

var icons = map[models.Category]Icon{
	models.CategoryProgramming:    IconCode,
	models.CategoryWeb:            IconGlobe,
	models.CategoryReact:          IconAtom,
	models.CategoryBackend:        IconServer,
	models.CategoryDatabase:       IconDatabase,
	models.CategoryDevOps:         IconContainer,
	models.CategoryCloud:          IconCloud,
	models.CategoryMobile:         IconSmartphone,
	models.CategoryDataScience:    IconBrain,
	models.CategorySecurity:       IconShield,
	models.CategoryCSFundamentals: IconCPU,
}

// IconFor returns the icon of c, falling back to the default category's icon
// for labels stored before the category set was fixed.
func IconFor(c models.Category) Icon {
	if icon, ok := icons[c]; ok {
		return icon
	}
	return icons[Default]
}
