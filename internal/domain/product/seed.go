package product

import "github.com/shopspring/decimal"

// Seed returns the default storefront catalog. It is used to populate the
// in-memory repository and by the seed-db tool.
func Seed() []Product {
	return []Product{
		{
			ID:          "mel-1",
			Name:        "Mel de Eucalipto",
			Price:       decimal.RequireFromString("32.90"),
			Description: "Mel puro de eucalipto com sabor suave e propriedades expectorantes naturais.",
			Image:       "/images/item-1.webp",
			Category:    "Mel de Sabores",
			Stock:       25,
		},
		{
			ID:          "mel-2",
			Name:        "Mel de Laranjeira",
			Price:       decimal.RequireFromString("28.90"),
			Description: "Mel floral de laranjeira com aroma cítrico e sabor delicadamente doce.",
			Image:       "/images/item-2.webp",
			Category:    "Mel de Sabores",
			Stock:       30,
		},
		{
			ID:          "mel-3",
			Name:        "Mel de Jataí",
			Price:       decimal.RequireFromString("45.90"),
			Description: "Mel raro de jataí, conhecido por sua textura cremosa e sabor exótico.",
			Image:       "/images/item-3.webp",
			Category:    "Mel de Sabores",
			Stock:       15,
		},
		{
			ID:          "mel-4",
			Name:        "Mel de Silvestre",
			Price:       decimal.RequireFromString("38.90"),
			Description: "Mel silvestre multifloral com sabor único e propriedades nutricionais completas.",
			Image:       "/images/item-2.webp",
			Category:    "Mel de Sabores",
			Stock:       20,
		},
		{
			ID:          "mel-5",
			Name:        "Mel de Assa-peixe",
			Price:       decimal.RequireFromString("42.90"),
			Description: "Mel de assa-peixe com sabor característico e propriedades medicinais.",
			Image:       "/images/item-3.webp",
			Category:    "Mel de Sabores",
			Stock:       18,
		},
		{
			ID:          "mel-6",
			Name:        "Mel de Caju",
			Price:       decimal.RequireFromString("35.90"),
			Description: "Mel de caju com sabor tropical e aroma marcante das flores do cajueiro.",
			Image:       "/images/item-1.webp",
			Category:    "Mel de Sabores",
			Stock:       22,
		},
	}
}
