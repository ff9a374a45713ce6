package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mailsift/mailsift/internal/core"
)

// defaultCategories is the compiled-in category set, used when no category
// file is configured
var defaultCategories = []core.Category{
	{
		Name:                "SPAM",
		Folder:              "Spam",
		Keywords:            []string{"unsubscribe", "click here", "limited time", "act now", "free money"},
		ConfidenceThreshold: 0.7,
		Priority:            1,
		Description:         "Unsolicited email and advertising",
	},
	{
		Name:                "VENTE",
		Folder:              "Achats",
		Keywords:            []string{"solde", "promo", "offrir", "%", "commander", "panier", "livraison", "code promo"},
		ConfidenceThreshold: 0.65,
		Priority:            2,
		Description:         "Commercial offers and shopping",
	},
	{
		Name:                "BANQUE",
		Folder:              "Administratif/Banque",
		Keywords:            []string{"virement", "compte", "banque", "facture", "paiement", "transaction", "solde"},
		ConfidenceThreshold: 0.8,
		Priority:            3,
		Description:         "Banking and administrative email",
	},
	{
		Name:                "PRO",
		Folder:              "Travail",
		Keywords:            []string{"réunion", "projet", "client", "deadline", "rapport", "présentation", "meeting"},
		ConfidenceThreshold: 0.7,
		Priority:            4,
		Description:         "Work email",
	},
	{
		Name:                "URGENT",
		Folder:              "À traiter",
		Keywords:            []string{"urgent", "asap", "important", "action requise", "immédiat"},
		ConfidenceThreshold: 0.75,
		Priority:            5,
		Description:         "Email flagged as urgent",
	},
	{
		Name:                "VOYAGES",
		Folder:              "Voyages",
		Keywords:            []string{"billet", "train", "vol", "booking", "hôtel", "réservation", "itinéraire"},
		ConfidenceThreshold: 0.7,
		Priority:            2,
		Description:         "Travel confirmations and itineraries",
	},
	{
		Name:                "SOCIAL",
		Folder:              "Réseaux sociaux",
		Keywords:            []string{"like", "comment", "follow", "share", "mention", "notification", "friend request"},
		ConfidenceThreshold: 0.65,
		Priority:            1,
		Description:         "Social network notifications",
	},
	{
		Name:                "NEWSLETTER",
		Folder:              "Newsletters",
		Keywords:            []string{"newsletter", "weekly", "monthly", "digest", "subscribe", "unsubscribe"},
		ConfidenceThreshold: 0.7,
		Priority:            1,
		Description:         "Newsletters and digests",
	},
}

// LoadCategories builds the category set from the configured JSON file, or
// from the compiled-in defaults when no file is configured
func (c *Config) LoadCategories() (*core.CategorySet, error) {
	path := c.GetString("categories.file")
	if path == "" {
		return core.NewCategorySet(defaultCategories)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file %s: %w", path, err)
	}
	var categories []core.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("invalid category file %s: %w", path, err)
	}
	return core.NewCategorySet(categories)
}
