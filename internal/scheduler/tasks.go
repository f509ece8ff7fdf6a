package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// JobExpirePayments 支付过期任务名
const JobExpirePayments = "payment:expire"

// PaymentExpirer 过期超时未付的支付并释放对应时段
type PaymentExpirer interface {
	ExpireOverduePayments(ctx context.Context) (int, error)
}

// ExpirePaymentsJob 周期扫描超时未付的支付
func ExpirePaymentsJob(payments PaymentExpirer, every time.Duration, log *zap.Logger) Job {
	if log == nil {
		log = zap.NewNop()
	}
	return Job{
		Name:  JobExpirePayments,
		Every: every,
		Run: func(ctx context.Context) error {
			n, err := payments.ExpireOverduePayments(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("Expired overdue payments", zap.Int("count", n))
			}
			return nil
		},
	}
}
