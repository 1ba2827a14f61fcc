package admin

import "errors"

var (
	ErrDepartmentNotFound = errors.New("department not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrRoomOccupied       = errors.New("room already allocated for that shift")
	ErrNameTaken          = errors.New("name already in use")
)
