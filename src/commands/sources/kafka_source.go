package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"kukan/src/database"
)

// KafkaPrefix is the URL prefix for Kafka sources
const KafkaPrefix = "kafka://"

const (
	kafkaMessagesChannelSize = 256
	kafkaNetTimeout          = 10 * time.Second
)

// offsetGetter looks up partition offsets. sarama.Client implements it
type offsetGetter interface {
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
}

// KafkaSource reads one JSON document per message from every partition of
// a topic. Without streaming it stops at the offsets the partitions had
// when it was opened
type KafkaSource struct {
	topic      string
	stream     bool
	consumer   sarama.Consumer
	client     io.Closer
	checkpoint *KafkaCheckpoint

	messages       chan *sarama.ConsumerMessage
	partConsumers  []sarama.PartitionConsumer
	cancel         context.CancelFunc
	consumersGroup sync.WaitGroup
	closeOnce      sync.Once

	mutex             sync.Mutex
	partitionToOffset map[int32]int64
}

// ParseKafkaURL splits "kafka://host1:9092,host2:9092/topic" into its
// comma separated servers and topic
func ParseKafkaURL(url string) (string, string, error) {
	if !strings.HasPrefix(url, KafkaPrefix) {
		return "", "", fmt.Errorf("'%s' does not start with %s", url, KafkaPrefix)
	}

	servers, topic, found := strings.Cut(url[len(KafkaPrefix):], "/")
	if !found {
		return "", "", fmt.Errorf("'%s' needs to include a '/' to include the topic name", url)
	}
	if servers == "" || topic == "" {
		return "", "", fmt.Errorf("'%s' needs both servers and a topic name", url)
	}
	return servers, topic, nil
}

// newKafkaConfig returns the consumer config. Offsets are tracked in the
// catalog, never committed to Kafka
func newKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.ClientID = "kukan"

	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.AutoCommit.Enable = false
	config.Consumer.Retry.Backoff = 2 * time.Second

	config.Net.DialTimeout = kafkaNetTimeout
	config.Net.ReadTimeout = kafkaNetTimeout
	config.Net.WriteTimeout = kafkaNetTimeout

	config.Consumer.Fetch.Min = 1024
	config.Consumer.Fetch.Default = 1024 * 1024
	config.Consumer.Fetch.Max = 10 * 1024 * 1024

	return config
}

// NewKafkaSourceFromURL connects to the brokers of url and starts consuming
// every partition of its topic, resuming from the checkpoints stored for
// indexName
func NewKafkaSourceFromURL(
	ctx context.Context,
	url string,
	stream bool,
	indexName string,
	db database.DBAdapter,
) (*KafkaSource, error) {
	servers, topic, err := ParseKafkaURL(url)
	if err != nil {
		return nil, err
	}

	logrus.Debugf("Reading from kafka '%s' (topic '%s')", servers, topic)

	client, err := sarama.NewClient(strings.Split(servers, ","), newKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka '%s': %w", servers, err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	checkpoint := NewKafkaCheckpoint(servers, topic, indexName, db)
	source, err := newKafkaSource(ctx, topic, stream, consumer, client, checkpoint)
	if err != nil {
		consumer.Close()
		client.Close()
		return nil, err
	}
	source.client = client
	return source, nil
}

func newKafkaSource(
	ctx context.Context,
	topic string,
	stream bool,
	consumer sarama.Consumer,
	offsets offsetGetter,
	checkpoint *KafkaCheckpoint,
) (*KafkaSource, error) {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to get partitions for topic %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no partitions found for topic %s", topic)
	}

	stored := make([]PartitionOffsetWithOptional, len(partitions))
	for i, partition := range partitions {
		stored[i].Partition = partition
	}
	if checkpoint != nil {
		if stored, err = checkpoint.Load(ctx, partitions); err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ks := &KafkaSource{
		topic:             topic,
		stream:            stream,
		consumer:          consumer,
		checkpoint:        checkpoint,
		messages:          make(chan *sarama.ConsumerMessage, kafkaMessagesChannelSize),
		cancel:            cancel,
		partitionToOffset: make(map[int32]int64),
	}

	for _, po := range stored {
		start, end, err := ks.partitionRange(po, offsets)
		if err != nil {
			ks.stopConsumers()
			return nil, err
		}
		if end >= 0 && start >= end {
			logrus.Debugf("Nothing to read from partition %d of topic %s", po.Partition, topic)
			continue
		}

		partConsumer, err := consumer.ConsumePartition(topic, po.Partition, start)
		if err != nil {
			ks.stopConsumers()
			return nil, fmt.Errorf("failed to consume partition %d: %w", po.Partition, err)
		}
		ks.partConsumers = append(ks.partConsumers, partConsumer)

		ks.consumersGroup.Add(1)
		go ks.pipePartition(runCtx, po.Partition, partConsumer, end)

		logrus.Infof("Started consumer for partition %d of topic %s at offset %d", po.Partition, topic, start)
	}

	go func() {
		ks.consumersGroup.Wait()
		close(ks.messages)
	}()

	return ks, nil
}

// partitionRange returns the offset to start a partition from and, without
// streaming, the offset to stop before (-1 when unbounded)
func (ks *KafkaSource) partitionRange(po PartitionOffsetWithOptional, offsets offsetGetter) (int64, int64, error) {
	end := int64(-1)
	if !ks.stream {
		newest, err := offsets.GetOffset(ks.topic, po.Partition, sarama.OffsetNewest)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get newest offset of partition %d: %w", po.Partition, err)
		}
		end = newest
	}

	if po.Offset == nil && ks.stream {
		return sarama.OffsetNewest, end, nil
	}

	oldest, err := offsets.GetOffset(ks.topic, po.Partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get oldest offset of partition %d: %w", po.Partition, err)
	}

	start := oldest
	if po.Offset != nil {
		if *po.Offset < oldest {
			logrus.Warnf("Checkpoint %d of partition %d is before the oldest offset %d, some messages were never indexed",
				*po.Offset, po.Partition, oldest)
		} else {
			start = *po.Offset
		}
	}
	return start, end, nil
}

// pipePartition forwards the messages of one partition until end, the
// partition consumer closing or ctx ending
func (ks *KafkaSource) pipePartition(ctx context.Context, partition int32, pc sarama.PartitionConsumer, end int64) {
	defer ks.consumersGroup.Done()

	messages := pc.Messages()
	errs := pc.Errors()
	for {
		select {
		case message, ok := <-messages:
			if !ok {
				return
			}
			select {
			case ks.messages <- message:
			case <-ctx.Done():
				return
			}
			if end >= 0 && message.Offset+1 >= end {
				logrus.Debugf("Reached offset %d of partition %d", end, partition)
				return
			}

		case consumerErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logrus.Errorf("Kafka consumer error (topic %s, partition %d): %v",
				consumerErr.Topic, consumerErr.Partition, consumerErr.Err)

		case <-ctx.Done():
			return
		}
	}
}

// GetOne implements Source interface. Messages with an empty value are
// skipped
func (ks *KafkaSource) GetOne(ctx context.Context) (*SourceItem, error) {
	for {
		select {
		case message, ok := <-ks.messages:
			if !ok {
				return &SourceItem{Type: SourceItemTypeClose}, nil
			}

			ks.mutex.Lock()
			ks.partitionToOffset[message.Partition] = message.Offset
			ks.mutex.Unlock()

			value := bytes.TrimSpace(message.Value)
			if len(value) == 0 {
				continue
			}

			decoder := json.NewDecoder(bytes.NewReader(value))
			decoder.UseNumber()

			var jsonMap JsonMap
			if err := decoder.Decode(&jsonMap); err != nil {
				return nil, fmt.Errorf("failed to parse JSON from partition %d offset %d: %w",
					message.Partition, message.Offset, err)
			}

			return &SourceItem{
				Type:     SourceItemTypeDocument,
				Document: jsonMap,
			}, nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GetCheckpointCommitter implements Source interface. The snapshot holds,
// per partition read since the last snapshot, the offset after the last
// message returned
func (ks *KafkaSource) GetCheckpointCommitter(ctx context.Context) (CheckpointCommitter, error) {
	if ks.checkpoint == nil {
		return nil, nil
	}

	ks.mutex.Lock()
	defer ks.mutex.Unlock()

	partitions := make([]int32, 0, len(ks.partitionToOffset))
	for partition := range ks.partitionToOffset {
		partitions = append(partitions, partition)
	}
	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i] < partitions[j]
	})

	flat := make([]PartitionOffset, len(partitions))
	for i, partition := range partitions {
		flat[i] = PartitionOffset{
			Partition: partition,
			Offset:    ks.partitionToOffset[partition] + 1,
		}
	}
	ks.partitionToOffset = make(map[int32]int64)

	return ks.checkpoint.Committer(flat), nil
}

func (ks *KafkaSource) stopConsumers() {
	ks.cancel()
	for _, pc := range ks.partConsumers {
		if err := pc.Close(); err != nil {
			logrus.Warnf("Failed to close partition consumer of topic %s: %v", ks.topic, err)
		}
	}
}

// Close implements Source interface
func (ks *KafkaSource) Close() error {
	var err error
	ks.closeOnce.Do(func() {
		ks.stopConsumers()
		err = ks.consumer.Close()
		if ks.client != nil {
			if clientErr := ks.client.Close(); err == nil {
				err = clientErr
			}
		}
	})
	return err
}
