package loansv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "notelend.loans.v1.LoanService"

const (
	LoanService_InitiateLoan_FullMethodName   = "/" + ServiceName + "/InitiateLoan"
	LoanService_UpdateLoan_FullMethodName     = "/" + ServiceName + "/UpdateLoan"
	LoanService_PartialRepay_FullMethodName   = "/" + ServiceName + "/PartialRepay"
	LoanService_Repay_FullMethodName          = "/" + ServiceName + "/Repay"
	LoanService_Liquidate_FullMethodName      = "/" + ServiceName + "/Liquidate"
	LoanService_Deposit_FullMethodName        = "/" + ServiceName + "/Deposit"
	LoanService_Withdraw_FullMethodName       = "/" + ServiceName + "/Withdraw"
	LoanService_TransferNote_FullMethodName   = "/" + ServiceName + "/TransferNote"
	LoanService_GetLoan_FullMethodName        = "/" + ServiceName + "/GetLoan"
	LoanService_GetActiveLoans_FullMethodName = "/" + ServiceName + "/GetActiveLoans"
	LoanService_RepayAmount_FullMethodName    = "/" + ServiceName + "/RepayAmount"
	LoanService_Liquidatable_FullMethodName   = "/" + ServiceName + "/Liquidatable"
)

// LoanServiceClient is the client API for LoanService.
type LoanServiceClient interface {
	InitiateLoan(ctx context.Context, in *InitiateLoanRequest, opts ...grpc.CallOption) (*InitiateLoanResponse, error)
	UpdateLoan(ctx context.Context, in *UpdateLoanRequest, opts ...grpc.CallOption) (*UpdateLoanResponse, error)
	PartialRepay(ctx context.Context, in *PartialRepayRequest, opts ...grpc.CallOption) (*RepayResponse, error)
	Repay(ctx context.Context, in *RepayRequest, opts ...grpc.CallOption) (*RepayResponse, error)
	Liquidate(ctx context.Context, in *LiquidateRequest, opts ...grpc.CallOption) (*LiquidateResponse, error)
	Deposit(ctx context.Context, in *CollateralRequest, opts ...grpc.CallOption) (*CollateralResponse, error)
	Withdraw(ctx context.Context, in *CollateralRequest, opts ...grpc.CallOption) (*CollateralResponse, error)
	TransferNote(ctx context.Context, in *TransferNoteRequest, opts ...grpc.CallOption) (*TransferNoteResponse, error)
	GetLoan(ctx context.Context, in *GetLoanRequest, opts ...grpc.CallOption) (*GetLoanResponse, error)
	GetActiveLoans(ctx context.Context, in *GetActiveLoansRequest, opts ...grpc.CallOption) (*GetActiveLoansResponse, error)
	RepayAmount(ctx context.Context, in *RepayAmountRequest, opts ...grpc.CallOption) (*RepayAmountResponse, error)
	Liquidatable(ctx context.Context, in *LiquidatableRequest, opts ...grpc.CallOption) (*LiquidatableResponse, error)
}

type loanServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLoanServiceClient binds a client to cc. Calls are sent with the JSON codec.
func NewLoanServiceClient(cc grpc.ClientConnInterface) LoanServiceClient {
	return &loanServiceClient{cc: cc}
}

func (c *loanServiceClient) InitiateLoan(ctx context.Context, in *InitiateLoanRequest, opts ...grpc.CallOption) (*InitiateLoanResponse, error) {
	out := new(InitiateLoanResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_InitiateLoan_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) UpdateLoan(ctx context.Context, in *UpdateLoanRequest, opts ...grpc.CallOption) (*UpdateLoanResponse, error) {
	out := new(UpdateLoanResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_UpdateLoan_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) PartialRepay(ctx context.Context, in *PartialRepayRequest, opts ...grpc.CallOption) (*RepayResponse, error) {
	out := new(RepayResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_PartialRepay_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) Repay(ctx context.Context, in *RepayRequest, opts ...grpc.CallOption) (*RepayResponse, error) {
	out := new(RepayResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_Repay_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) Liquidate(ctx context.Context, in *LiquidateRequest, opts ...grpc.CallOption) (*LiquidateResponse, error) {
	out := new(LiquidateResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_Liquidate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) Deposit(ctx context.Context, in *CollateralRequest, opts ...grpc.CallOption) (*CollateralResponse, error) {
	out := new(CollateralResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_Deposit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) Withdraw(ctx context.Context, in *CollateralRequest, opts ...grpc.CallOption) (*CollateralResponse, error) {
	out := new(CollateralResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_Withdraw_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) TransferNote(ctx context.Context, in *TransferNoteRequest, opts ...grpc.CallOption) (*TransferNoteResponse, error) {
	out := new(TransferNoteResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_TransferNote_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) GetLoan(ctx context.Context, in *GetLoanRequest, opts ...grpc.CallOption) (*GetLoanResponse, error) {
	out := new(GetLoanResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_GetLoan_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) GetActiveLoans(ctx context.Context, in *GetActiveLoansRequest, opts ...grpc.CallOption) (*GetActiveLoansResponse, error) {
	out := new(GetActiveLoansResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_GetActiveLoans_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) RepayAmount(ctx context.Context, in *RepayAmountRequest, opts ...grpc.CallOption) (*RepayAmountResponse, error) {
	out := new(RepayAmountResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_RepayAmount_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *loanServiceClient) Liquidatable(ctx context.Context, in *LiquidatableRequest, opts ...grpc.CallOption) (*LiquidatableResponse, error) {
	out := new(LiquidatableResponse)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, LoanService_Liquidatable_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LoanServiceServer is the server API for LoanService. Implementations must
// embed UnimplementedLoanServiceServer.
type LoanServiceServer interface {
	InitiateLoan(context.Context, *InitiateLoanRequest) (*InitiateLoanResponse, error)
	UpdateLoan(context.Context, *UpdateLoanRequest) (*UpdateLoanResponse, error)
	PartialRepay(context.Context, *PartialRepayRequest) (*RepayResponse, error)
	Repay(context.Context, *RepayRequest) (*RepayResponse, error)
	Liquidate(context.Context, *LiquidateRequest) (*LiquidateResponse, error)
	Deposit(context.Context, *CollateralRequest) (*CollateralResponse, error)
	Withdraw(context.Context, *CollateralRequest) (*CollateralResponse, error)
	TransferNote(context.Context, *TransferNoteRequest) (*TransferNoteResponse, error)
	GetLoan(context.Context, *GetLoanRequest) (*GetLoanResponse, error)
	GetActiveLoans(context.Context, *GetActiveLoansRequest) (*GetActiveLoansResponse, error)
	RepayAmount(context.Context, *RepayAmountRequest) (*RepayAmountResponse, error)
	Liquidatable(context.Context, *LiquidatableRequest) (*LiquidatableResponse, error)
	mustEmbedUnimplementedLoanServiceServer()
}

// UnimplementedLoanServiceServer answers every method with codes.Unimplemented.
type UnimplementedLoanServiceServer struct{}

func (UnimplementedLoanServiceServer) InitiateLoan(context.Context, *InitiateLoanRequest) (*InitiateLoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method InitiateLoan not implemented")
}
func (UnimplementedLoanServiceServer) UpdateLoan(context.Context, *UpdateLoanRequest) (*UpdateLoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateLoan not implemented")
}
func (UnimplementedLoanServiceServer) PartialRepay(context.Context, *PartialRepayRequest) (*RepayResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PartialRepay not implemented")
}
func (UnimplementedLoanServiceServer) Repay(context.Context, *RepayRequest) (*RepayResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Repay not implemented")
}
func (UnimplementedLoanServiceServer) Liquidate(context.Context, *LiquidateRequest) (*LiquidateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Liquidate not implemented")
}
func (UnimplementedLoanServiceServer) Deposit(context.Context, *CollateralRequest) (*CollateralResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Deposit not implemented")
}
func (UnimplementedLoanServiceServer) Withdraw(context.Context, *CollateralRequest) (*CollateralResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Withdraw not implemented")
}
func (UnimplementedLoanServiceServer) TransferNote(context.Context, *TransferNoteRequest) (*TransferNoteResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TransferNote not implemented")
}
func (UnimplementedLoanServiceServer) GetLoan(context.Context, *GetLoanRequest) (*GetLoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLoan not implemented")
}
func (UnimplementedLoanServiceServer) GetActiveLoans(context.Context, *GetActiveLoansRequest) (*GetActiveLoansResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetActiveLoans not implemented")
}
func (UnimplementedLoanServiceServer) RepayAmount(context.Context, *RepayAmountRequest) (*RepayAmountResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RepayAmount not implemented")
}
func (UnimplementedLoanServiceServer) Liquidatable(context.Context, *LiquidatableRequest) (*LiquidatableResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Liquidatable not implemented")
}
func (UnimplementedLoanServiceServer) mustEmbedUnimplementedLoanServiceServer() {}

// RegisterLoanServiceServer attaches srv to s.
func RegisterLoanServiceServer(s grpc.ServiceRegistrar, srv LoanServiceServer) {
	s.RegisterService(&LoanService_ServiceDesc, srv)
}

func _LoanService_InitiateLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InitiateLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).InitiateLoan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_InitiateLoan_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).InitiateLoan(ctx, req.(*InitiateLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_UpdateLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).UpdateLoan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_UpdateLoan_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).UpdateLoan(ctx, req.(*UpdateLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_PartialRepay_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PartialRepayRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).PartialRepay(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_PartialRepay_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).PartialRepay(ctx, req.(*PartialRepayRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_Repay_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RepayRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).Repay(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_Repay_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).Repay(ctx, req.(*RepayRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_Liquidate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LiquidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).Liquidate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_Liquidate_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).Liquidate(ctx, req.(*LiquidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_Deposit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CollateralRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).Deposit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_Deposit_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).Deposit(ctx, req.(*CollateralRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_Withdraw_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CollateralRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).Withdraw(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_Withdraw_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).Withdraw(ctx, req.(*CollateralRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_TransferNote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TransferNoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).TransferNote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_TransferNote_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).TransferNote(ctx, req.(*TransferNoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_GetLoan_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetLoanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).GetLoan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_GetLoan_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).GetLoan(ctx, req.(*GetLoanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_GetActiveLoans_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetActiveLoansRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).GetActiveLoans(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_GetActiveLoans_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).GetActiveLoans(ctx, req.(*GetActiveLoansRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_RepayAmount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RepayAmountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).RepayAmount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_RepayAmount_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).RepayAmount(ctx, req.(*RepayAmountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LoanService_Liquidatable_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LiquidatableRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoanServiceServer).Liquidatable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LoanService_Liquidatable_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoanServiceServer).Liquidatable(ctx, req.(*LiquidatableRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LoanService_ServiceDesc is the grpc.ServiceDesc for LoanService.
var LoanService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LoanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "InitiateLoan",
			Handler:    _LoanService_InitiateLoan_Handler,
		},
		{
			MethodName: "UpdateLoan",
			Handler:    _LoanService_UpdateLoan_Handler,
		},
		{
			MethodName: "PartialRepay",
			Handler:    _LoanService_PartialRepay_Handler,
		},
		{
			MethodName: "Repay",
			Handler:    _LoanService_Repay_Handler,
		},
		{
			MethodName: "Liquidate",
			Handler:    _LoanService_Liquidate_Handler,
		},
		{
			MethodName: "Deposit",
			Handler:    _LoanService_Deposit_Handler,
		},
		{
			MethodName: "Withdraw",
			Handler:    _LoanService_Withdraw_Handler,
		},
		{
			MethodName: "TransferNote",
			Handler:    _LoanService_TransferNote_Handler,
		},
		{
			MethodName: "GetLoan",
			Handler:    _LoanService_GetLoan_Handler,
		},
		{
			MethodName: "GetActiveLoans",
			Handler:    _LoanService_GetActiveLoans_Handler,
		},
		{
			MethodName: "RepayAmount",
			Handler:    _LoanService_RepayAmount_Handler,
		},
		{
			MethodName: "Liquidatable",
			Handler:    _LoanService_Liquidatable_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/loans/v1/messages.go",
}
