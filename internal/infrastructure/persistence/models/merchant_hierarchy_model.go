package models

// MerchantHierarchyModel maps a merchant to its organization and bank,
// the static ancestry the parameter resolver's hierarchy walk depends on.
type MerchantHierarchyModel struct {
	MerchantID     string `gorm:"primaryKey"`
	OrganizationID string `gorm:"index;not null"`
	BankID         string `gorm:"index;not null"`
}

// TableName pins the GORM table name.
func (MerchantHierarchyModel) TableName() string { return "merchant_hierarchy" }
