package domain

type ShopItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func DefaultShop() []ShopItem {
	return []ShopItem{
		{ID: 1, Name: "VIP badge", Price: 500},
		{ID: 2, Name: "Custom title", Price: 1000},
		{ID: 3, Name: "Group shoutout", Price: 300},
	}
}
