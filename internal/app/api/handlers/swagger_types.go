package handlers

// RespOK mirrors the generic response envelope for swagger docs, which cannot
// express Go generics.
type RespOK struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
