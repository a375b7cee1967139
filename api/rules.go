package api

import "github.com/jonwraymond/storefront/cache"

// Cache tags attached to reads.
const (
	TagProducts = "Products"
	TagProduct  = "Product"
	TagOrders   = "Orders"
	TagOrder    = "Order"
	TagUser     = "User"
)

// Mutation kinds, named after the endpoints they call.
const (
	KindCreateProduct = "createProduct"
	KindUpdateProduct = "updateProduct"
	KindDeleteProduct = "deleteProduct"
	KindCreateReview  = "createReview"
	KindUploadImage   = "uploadProductImage"
	KindCreateOrder   = "createOrder"
	KindPayOrder      = "payOrder"
	KindDeliverOrder  = "deliverOrder"
	KindLogin         = "login"
	KindRegister      = "register"
	KindLogout        = "logout"
	KindUpdateProfile = "updateProfile"
	KindUpdateUser    = "updateUser"
	KindDeleteUser    = "deleteUser"
)

// Rules returns the storefront invalidation table. Kinds not listed
// invalidate nothing.
func Rules() cache.RuleTable {
	return cache.RuleTable{
		KindCreateProduct: {TagProducts, TagProduct},
		KindUpdateProduct: {TagProducts, TagProduct},
		KindDeleteProduct: {TagProducts, TagProduct},
		KindCreateReview:  {TagProducts, TagProduct},
		KindCreateOrder:   {TagOrders},
		KindPayOrder:      {TagOrder, TagOrders},
		KindDeliverOrder:  {TagOrder, TagOrders},
		KindUpdateProfile: {TagUser},
		KindUpdateUser:    {TagUser},
		KindDeleteUser:    {TagUser},
	}
}
