package provider

import (
	"fmt"
	"strings"
)

type Topic struct {
	Name string
	ARN  string
}

// TopicFromARN derives the topic name from the last ARN segment.
func TopicFromARN(arn string) Topic {
	name := arn
	if i := strings.LastIndex(arn, ":"); i >= 0 {
		name = arn[i+1:]
	}
	return Topic{Name: name, ARN: arn}
}

// ResolveTopic picks the topic for logicalName from a live listing.
// An exact ARN or exact name match wins; otherwise the first topic whose ARN
// ends with logicalName is used. Brokers do not guarantee listing order, so
// several suffix matches make the choice arbitrary; configure a full ARN to
// avoid that.
func ResolveTopic(topics []Topic, logicalName string) (Topic, error) {
	if logicalName == "" {
		return Topic{}, fmt.Errorf("%w: empty topic name", ErrTopicNotFound)
	}
	for _, t := range topics {
		if t.ARN == logicalName {
			return t, nil
		}
	}
	for _, t := range topics {
		if t.Name == logicalName {
			return t, nil
		}
	}
	for _, t := range topics {
		if strings.HasSuffix(t.ARN, logicalName) {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("%w: no topic ends with %q", ErrTopicNotFound, logicalName)
}
