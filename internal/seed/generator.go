package seed

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

type User struct {
	ID         int64
	Name       string
	Email      string
	SignupDate time.Time
}

type Product struct {
	ID         int64
	Name       string
	Category   string
	Price      float64
	StockLevel int
}

type Order struct {
	ID          int64
	UserID      int64
	OrderDate   time.Time
	Status      string
	TotalAmount float64
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice float64
}

// Dataset is the content of the demo enterprise database.
type Dataset struct {
	Users      []User
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem
}

var (
	userNames = []string{
		"Kitan Oladapo",
		"Amina Yusuf",
		"Emeka Okonkwo",
		"Sarah Johnson",
		"David Chen",
	}
	catalog = []Product{
		{Name: "Laptop Pro X", Category: "Electronics", Price: 1200.00},
		{Name: "Wireless Mouse", Category: "Electronics", Price: 25.50},
		{Name: "Ergonomic Chair", Category: "Furniture", Price: 350.00},
		{Name: "Python for AI", Category: "Books", Price: 45.00},
		{Name: "Noise Cancelling Headphones", Category: "Electronics", Price: 299.99},
		{Name: "Standing Desk", Category: "Furniture", Price: 450.00},
	}
	orderStatuses = []string{"shipped", "delivered", "pending"}
)

// Generate builds a dataset that is fully determined by seed and now.
// Order totals equal the sum of their items.
func Generate(seed int64, orders int, now time.Time) Dataset {
	rnd := rand.New(rand.NewSource(seed))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var ds Dataset
	for i, name := range userNames {
		ds.Users = append(ds.Users, User{
			ID:         int64(i + 1),
			Name:       name,
			Email:      strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@example.com",
			SignupDate: time.Date(2023, time.Month(rnd.Intn(12)+1), rnd.Intn(28)+1, 0, 0, 0, 0, time.UTC),
		})
	}
	for i, p := range catalog {
		p.ID = int64(i + 1)
		p.StockLevel = 100
		ds.Products = append(ds.Products, p)
	}

	var itemID int64
	for i := 0; i < orders; i++ {
		order := Order{
			ID:        int64(i + 1),
			UserID:    int64(rnd.Intn(len(ds.Users)) + 1),
			OrderDate: today.AddDate(0, 0, -rnd.Intn(31)),
			Status:    orderStatuses[rnd.Intn(len(orderStatuses))],
		}
		var total float64
		for n := rnd.Intn(3) + 1; n > 0; n-- {
			product := ds.Products[rnd.Intn(len(ds.Products))]
			qty := rnd.Intn(2) + 1
			itemID++
			ds.OrderItems = append(ds.OrderItems, OrderItem{
				ID:        itemID,
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  qty,
				UnitPrice: product.Price,
			})
			total += product.Price * float64(qty)
		}
		order.TotalAmount = round2(total)
		ds.Orders = append(ds.Orders, order)
	}
	return ds
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
