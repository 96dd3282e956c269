package pipeline

// Resolve derives the total price and availability flag of one item. Rules are checked in
// order and the first match wins:
//
//	price    delivery  sellers   total             availability
//	absent   -         absent    -1                0
//	absent   -         present   sellers           1
//	present  present   -         price + delivery  1
//	present  absent    -         price             1
//
// sellers is ignored whenever price is present.
func Resolve(price, delivery, sellers *float64) (float64, int) {
	switch {
	case price == nil && sellers == nil:
		return -1, 0
	case price == nil:
		return *sellers, 1
	case delivery != nil:
		return *price + *delivery, 1
	default:
		return *price, 1
	}
}
