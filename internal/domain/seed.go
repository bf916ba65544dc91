package domain

import "time"

// Seed data makes a fresh install browsable. Every getter falls back to a
// fresh copy of these values while nothing is stored yet.

const (
	DefaultStoreName    = "বিসমিল্লাহ সুপার মার্কেট"
	DefaultStoreSlogan  = "তাজা ও বিশুদ্ধ পণ্যের আস্থার প্রতীক"
	DefaultStoreLogo    = "https://raw.githubusercontent.com/BismillahSupermarket/Assets/main/logo.png"
	DefaultSupportPhone = "01978501415"
)

func price(v float64) *float64 { return &v }

// SeedCategories returns the demo categories.
func SeedCategories() []Category {
	return []Category{
		{ID: "rice", Name: "চাল ও ডাল", Icon: "🌾", Color: "amber"},
		{ID: "oil", Name: "তেল ও ঘি", Icon: "🫒", Color: "yellow"},
		{ID: "vegetables", Name: "শাকসবজি", Icon: "🥬", Color: "green"},
		{ID: "fish", Name: "মাছ ও মাংস", Icon: "🐟", Color: "blue"},
		{ID: "spices", Name: "মসলা", Icon: "🌶️", Color: "red"},
		{ID: "snacks", Name: "স্ন্যাকস ও পানীয়", Icon: "🍪", Color: "orange"},
	}
}

// SeedProducts returns the demo catalog. Every product is active.
func SeedProducts() []Product {
	return []Product{
		{ID: "p1", Name: "মিনিকেট চাল", Price: 75, OldPrice: price(80), Category: "rice", Image: "https://images.unsplash.com/photo-1586201375761-83865001e31c", Unit: "১ কেজি", Stock: 120, Description: "বাছাইকৃত মিনিকেট চাল, ঝরঝরে ভাতের জন্য।", IsActive: true},
		{ID: "p2", Name: "মসুর ডাল", Price: 135, Category: "rice", Image: "https://images.unsplash.com/photo-1613758947307-f3b8f5d80711", Unit: "১ কেজি", Stock: 60, Description: "দেশি মসুর ডাল।", IsActive: true},
		{ID: "p3", Name: "সয়াবিন তেল", Price: 175, OldPrice: price(185), Category: "oil", Image: "https://images.unsplash.com/photo-1474979266404-7eaacbcd87c5", Unit: "১ লিটার", Stock: 45, Description: "ভিটামিন এ সমৃদ্ধ পরিশোধিত সয়াবিন তেল।", IsActive: true},
		{ID: "p4", Name: "সরিষার তেল", Price: 260, Category: "oil", Image: "https://images.unsplash.com/photo-1620706857370-e1b9770e8bb1", Unit: "১ লিটার", Stock: 8, Description: "খাঁটি ঘানি ভাঙা সরিষার তেল।", IsActive: true},
		{ID: "p5", Name: "আলু", Price: 50, Category: "vegetables", Image: "https://images.unsplash.com/photo-1518977676601-b53f82aba655", Unit: "১ কেজি", Stock: 200, Description: "তাজা দেশি আলু।", IsActive: true},
		{ID: "p6", Name: "পেঁয়াজ", Price: 90, Category: "vegetables", Image: "https://images.unsplash.com/photo-1618512496248-a07fe83aa8cb", Unit: "১ কেজি", Stock: 150, Description: "দেশি লাল পেঁয়াজ।", IsActive: true},
		{ID: "p7", Name: "রুই মাছ", Price: 380, Category: "fish", Image: "https://images.unsplash.com/photo-1534043464124-3be32fe000c9", Unit: "১ কেজি", Stock: 15, Description: "নদীর তাজা রুই মাছ।", IsActive: true},
		{ID: "p8", Name: "হলুদ গুঁড়া", Price: 60, Category: "spices", Image: "https://images.unsplash.com/photo-1615485500704-8e990f9900f7", Unit: "১০০ গ্রাম", Stock: 80, Description: "খাঁটি হলুদ গুঁড়া।", IsActive: true},
		{ID: "p9", Name: "চানাচুর", Price: 40, Category: "snacks", Image: "https://images.unsplash.com/photo-1599490659213-e2b9527bd087", Unit: "১৫০ গ্রাম", Stock: 5, Description: "ঝাল মশলাদার চানাচুর।", IsActive: true},
	}
}

// SeedOrders returns the demo order history, newest first.
func SeedOrders() []Order {
	return []Order{
		{
			ID:            "ORD-1717228800000",
			Date:          "01 Jun 2024",
			Total:         400,
			Status:        StatusPending,
			ItemsCount:    2,
			Items:         []OrderItem{{Name: "মিনিকেট চাল", Quantity: 2, Price: 75}, {Name: "পেঁয়াজ", Quantity: 2, Price: 100}},
			PaymentMethod: PaymentCOD,
		},
		{
			ID:             "ORD-1716969600000",
			Date:           "29 May 2024",
			Total:          485,
			Status:         StatusDelivered,
			ItemsCount:     2,
			Items:          []OrderItem{{Name: "সয়াবিন তেল", Quantity: 1, Price: 175}, {Name: "মসুর ডাল", Quantity: 2, Price: 130}},
			PaymentMethod:  PaymentBkash,
			PaymentDetails: &PaymentDetails{Phone: "01711000000", TrxID: "8N7A6B5C"},
		},
	}
}

// SeedAddresses returns the address list a new device starts with.
func SeedAddresses() []Address {
	return []Address{{
		ID:           "a1",
		Label:        "Home",
		ReceiverName: "মোঃ শরিফুল ইসলাম",
		Phone:        "01700-000000",
		Details:      "বাড়ি নং ১২, রোড নং ৫, ধানমন্ডি, ঢাকা",
		IsDefault:    true,
	}}
}

// DefaultSettings returns the settings a fresh install runs with, stamped at now.
func DefaultSettings(now time.Time) SystemSettings {
	return SystemSettings{
		IsStoreOpen:              true,
		MaintenanceMode:          false,
		DeliveryCharge:           50,
		MinOrderAmount:           100,
		AIAssistantEnabled:       true,
		StoreName:                DefaultStoreName,
		StoreSlogan:              DefaultStoreSlogan,
		StoreLogo:                DefaultStoreLogo,
		SupportPhone:             DefaultSupportPhone,
		GlobalDiscountEnabled:    false,
		GlobalDiscountPercentage: 10,
		AutoSyncEnabled:          true,
		LastSyncTimestamp:        now.UTC().Format(time.RFC3339Nano),
	}
}
