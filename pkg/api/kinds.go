// Package api binds the shop services to request kinds. It converts between
// the open wire payloads and typed requests at the edge, in both directions.
package api

// Request kinds.
const (
	KindPing   = "PING"
	KindLogin  = "LOGIN"
	KindLogout = "LOGOUT"

	KindGetAllUsers = "GET_ALL_USERS"
	KindGetUserByID = "GET_USER_BY_ID"
	KindCreateUser  = "CREATE_USER"
	KindUpdateUser  = "UPDATE_USER"
	KindDeleteUser  = "DELETE_USER"

	KindGetAllProducts        = "GET_ALL_PRODUCTS"
	KindGetProductByID        = "GET_PRODUCT_BY_ID"
	KindCreateProduct         = "CREATE_PRODUCT"
	KindUpdateProduct         = "UPDATE_PRODUCT"
	KindDeleteProduct         = "DELETE_PRODUCT"
	KindSearchProducts        = "SEARCH_PRODUCTS"
	KindGetProductsByCategory = "GET_PRODUCTS_BY_CATEGORY"

	KindGetAllCategories = "GET_ALL_CATEGORIES"
	KindCreateCategory   = "CREATE_CATEGORY"

	KindGetAllCustomers = "GET_ALL_CUSTOMERS"
	KindGetCustomerByID = "GET_CUSTOMER_BY_ID"
	KindCreateCustomer  = "CREATE_CUSTOMER"
	KindUpdateCustomer  = "UPDATE_CUSTOMER"
	KindDeleteCustomer  = "DELETE_CUSTOMER"
	KindSearchCustomers = "SEARCH_CUSTOMERS"

	KindGetAllOrders        = "GET_ALL_ORDERS"
	KindGetOrderByID        = "GET_ORDER_BY_ID"
	KindCreateOrder         = "CREATE_ORDER"
	KindUpdateOrderStatus   = "UPDATE_ORDER_STATUS"
	KindGetOrdersByCustomer = "GET_ORDERS_BY_CUSTOMER"
	KindGetOrderItems       = "GET_ORDER_ITEMS"

	KindGetAllInventory     = "GET_ALL_INVENTORY"
	KindUpdateInventory     = "UPDATE_INVENTORY"
	KindGetLowStockProducts = "GET_LOW_STOCK_PRODUCTS"
)

// public kinds are served without a session token.
var public = map[string]bool{
	KindPing:  true,
	KindLogin: true,
}
