package sendsns

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
)

// NewClient is swapped out in tests.
var NewClient = func() snsiface.SNSAPI {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return sns.New(sess)
}

// SendSNS publishes an alert. Nothing is sent when no topic is configured.
func SendSNS(subject string, message string, snsArn string) error {
	if snsArn == "" {
		return nil
	}
	_, err := NewClient().Publish(&sns.PublishInput{
		Message:  aws.String(message),
		TopicArn: aws.String(snsArn),
		Subject:  aws.String(subject),
	})
	return err
}
